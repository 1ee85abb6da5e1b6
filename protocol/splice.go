package protocol

// Piece is one param of a Splice: a plain value or a nested template.
type Piece[T any] struct {
	Value  T
	Nested *Splice[T]
}

// Value wraps a scalar param.
func Value[T any](v T) Piece[T] { return Piece[T]{Value: v} }

// Nest wraps a nested template param.
func Nest[T any](s *Splice[T]) Piece[T] { return Piece[T]{Nested: s} }

// IsNested reports whether the piece holds a template.
func (p Piece[T]) IsNested() bool { return p.Nested != nil }

// Splice is a template whose params may recursively hold templates.
type Splice[T any] struct {
	Parts  []string
	Params []Piece[T]
}

// Lift converts a canonical template into a Splice with scalar pieces only.
func Lift[T any](t Template[T]) *Splice[T] {
	pieces := make([]Piece[T], len(t.Params))
	for i, v := range t.Params {
		pieces[i] = Value(v)
	}
	return &Splice[T]{Parts: append([]string(nil), t.Parts...), Params: pieces}
}

// Compose builds a Splice from backend input. nested reports, per param,
// whether the value is itself a template and returns it.
func Compose[T any](parts []string, params []T, nested func(T) (*Splice[T], bool)) *Splice[T] {
	pieces := make([]Piece[T], len(params))
	for i, v := range params {
		if inner, ok := nested(v); ok && inner != nil {
			pieces[i] = Nest(inner)
			continue
		}
		pieces[i] = Value(v)
	}
	return &Splice[T]{Parts: append([]string(nil), parts...), Params: pieces}
}

// Flatten normalizes an arbitrarily nested Splice into one canonical Template.
//
// At a nested piece the inner first part joins the last emitted part and the
// outer literal that follows joins the inner last part; no literal separates
// the adjoining edges. The result is the same however the tree is grouped.
func (s *Splice[T]) Flatten() (Template[T], error) {
	out := Template[T]{Parts: []string{""}}
	if s == nil {
		return out, nil
	}
	if err := s.flattenInto(&out); err != nil {
		return Template[T]{}, err
	}
	return out, nil
}

// flattenInto appends s to out. out must already end with a part that s's
// first part is merged into.
func (s *Splice[T]) flattenInto(out *Template[T]) error {
	if err := CheckArity(len(s.Parts), len(s.Params)); err != nil {
		return err
	}
	last := len(out.Parts) - 1
	out.Parts[last] += s.Parts[0]
	for i, p := range s.Params {
		if p.Nested != nil {
			if err := p.Nested.flattenInto(out); err != nil {
				return err
			}
			out.Parts[len(out.Parts)-1] += s.Parts[i+1]
			continue
		}
		out.Params = append(out.Params, p.Value)
		out.Parts = append(out.Parts, s.Parts[i+1])
	}
	return nil
}
