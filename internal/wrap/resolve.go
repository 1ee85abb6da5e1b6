package wrap

import (
	"fmt"
	"go/types"
	"strings"
)

// ResolutionKind tells how a slot reaches the element type.
type ResolutionKind uint8

const (
	// Identity passes the slot value through unchanged.
	Identity ResolutionKind = iota + 1
	// Wrapped routes the slot value through a conversion method.
	Wrapped
)

func (k ResolutionKind) String() string {
	switch k {
	case Identity:
		return "identity"
	case Wrapped:
		return "wrapped"
	}
	return "unresolved"
}

// Resolution is the outcome of resolving one slot.
type Resolution struct {
	Kind       ResolutionKind
	Slot       types.Type
	Conversion *Conversion
}

func (r Resolution) String() string {
	if r.Kind == Wrapped {
		return r.Conversion.Method.Name()
	}
	return r.Kind.String()
}

// ResolutionError reports a slot type no conversion accepts, or several
// conversions accept equally well.
type ResolutionError struct {
	Slot       types.Type
	Elem       types.Type
	Ambiguous  bool
	Matches    []*Conversion
	Candidates []*Conversion
	Malformed  []Malformed
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	slot := types.TypeString(e.Slot, pkgName)
	if e.Ambiguous {
		fmt.Fprintf(&b, "ambiguous wrap for %s: %s", slot, joinConversions(e.Matches))
		return b.String()
	}
	fmt.Fprintf(&b, "no wrap for %s converting to %s", slot, types.TypeString(e.Elem, pkgName))
	if len(e.Candidates) == 0 {
		b.WriteString("; no candidates declared")
	} else {
		fmt.Fprintf(&b, "; candidates: %s", joinConversions(e.Candidates))
	}
	if len(e.Malformed) > 0 {
		parts := make([]string, len(e.Malformed))
		for i, m := range e.Malformed {
			parts[i] = m.String()
		}
		fmt.Fprintf(&b, "; malformed: %s", strings.Join(parts, ", "))
	}
	return b.String()
}

func joinConversions(cs []*Conversion) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// Resolve picks how a slot of static type slot becomes an element.
//
// A slot of exactly the element type passes through. So does any slot
// assignable to it when the table declares no conversions. Otherwise strict
// conversions accept only their exact parameter type and the others accept
// anything assignable to it; of several matches the most specific one wins.
func (t *Table) Resolve(slot types.Type) (Resolution, error) {
	if types.Identical(slot, t.Elem) {
		return Resolution{Kind: Identity, Slot: slot}, nil
	}
	s := types.Default(slot)
	if !t.HasWraps() && types.AssignableTo(s, t.Elem) {
		return Resolution{Kind: Identity, Slot: slot}, nil
	}

	var matches []*Conversion
	for _, c := range t.Candidates() {
		if types.Identical(s, c.Param) {
			return Resolution{Kind: Wrapped, Slot: slot, Conversion: c}, nil
		}
		if !c.Strict && types.AssignableTo(s, c.Param) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return Resolution{}, &ResolutionError{
			Slot:       slot,
			Elem:       t.Elem,
			Candidates: t.Candidates(),
			Malformed:  t.Malformed,
		}
	case 1:
		return Resolution{Kind: Wrapped, Slot: slot, Conversion: matches[0]}, nil
	}
	if best := mostSpecific(matches); best != nil {
		return Resolution{Kind: Wrapped, Slot: slot, Conversion: best}, nil
	}
	return Resolution{}, &ResolutionError{
		Slot:       slot,
		Elem:       t.Elem,
		Ambiguous:  true,
		Matches:    matches,
		Candidates: t.Candidates(),
		Malformed:  t.Malformed,
	}
}

// mostSpecific returns the only match whose parameter is assignable to the
// parameters of all other matches, or nil.
func mostSpecific(matches []*Conversion) *Conversion {
	var best *Conversion
	for _, c := range matches {
		ok := true
		for _, o := range matches {
			if o != c && !types.AssignableTo(c.Param, o.Param) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if best != nil {
			return nil
		}
		best = c
	}
	return best
}
