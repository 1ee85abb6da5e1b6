// Package fragment recognizes interpolator call shapes and decomposes their
// arguments into the canonical (parts, slots) form.
package fragment

import (
	"go/ast"
	"go/token"
	"go/types"

	"interpol/protocol"
)

// Kind discriminates the two fragment variants.
type Kind uint8

const (
	KindLiteral Kind = iota
	KindSlot
)

func (k Kind) String() string {
	if k == KindSlot {
		return "slot"
	}
	return "literal"
}

// Slot is one embedded dynamic expression.
type Slot struct {
	Expr ast.Expr
	// Type is the static type of Expr before any implicit conversion to the
	// entry point's parameter type.
	Type types.Type
	// Text is the source text of Expr; Exact reports whether it was read from
	// the file or reconstructed by printing the expression.
	Text  string
	Exact bool
	Pos   token.Pos
	End   token.Pos
}

// Fragment is a Literal or a Slot, in lexical order.
type Fragment struct {
	Kind Kind
	Text string
	Slot *Slot
}

// Lit builds a literal fragment.
func Lit(text string) Fragment { return Fragment{Kind: KindLiteral, Text: text} }

// SlotOf builds a slot fragment.
func SlotOf(s *Slot) Fragment { return Fragment{Kind: KindSlot, Slot: s} }

// Template is the canonical form: len(Parts) == len(Slots)+1.
type Template struct {
	Parts []string
	Slots []*Slot
}

// Validate checks the arity invariant.
func (t Template) Validate() error {
	return protocol.CheckArity(len(t.Parts), len(t.Slots))
}

// Fragments re-expands the template into an alternating sequence.
func (t Template) Fragments() []Fragment {
	out := make([]Fragment, 0, len(t.Parts)+len(t.Slots))
	for i, part := range t.Parts {
		out = append(out, Lit(part))
		if i < len(t.Slots) {
			out = append(out, SlotOf(t.Slots[i]))
		}
	}
	return out
}

// Unzip converts a fragment sequence into a canonical template in one
// left-to-right pass. It never fails and never drops a slot: a slot met where
// a literal is expected gets an empty literal in front of it, and a literal
// met where a slot is expected is merged into the previous part.
func Unzip(frags []Fragment) Template {
	t := Template{Parts: make([]string, 0, len(frags)/2+1)}
	expectLiteral := true
	for i := 0; i < len(frags); {
		f := frags[i]
		if expectLiteral {
			if f.Kind == KindLiteral {
				t.Parts = append(t.Parts, f.Text)
				i++
			} else {
				t.Parts = append(t.Parts, "")
			}
			expectLiteral = false
			continue
		}
		if f.Kind == KindSlot {
			t.Slots = append(t.Slots, f.Slot)
			expectLiteral = true
		} else {
			t.Parts[len(t.Parts)-1] += f.Text
		}
		i++
	}
	if expectLiteral {
		t.Parts = append(t.Parts, "")
	}
	return t
}
