package wrap

import (
	"fmt"
	"go/types"
	"sort"
	"strings"

	"golang.org/x/tools/go/types/typeutil"
)

const (
	wrapPrefix   = "Wrap"
	inlineMethod = "Inlined"
)

// ConversionKey identifies a conversion by its parameter type.
type ConversionKey string

// KeyOf returns the key of a parameter type.
func KeyOf(t types.Type) ConversionKey {
	return ConversionKey(types.TypeString(t, nil))
}

// Conversion is one capability method WrapX(P) T.
type Conversion struct {
	Method *types.Func
	Param  types.Type
	Strict bool
}

func (c *Conversion) String() string {
	s := fmt.Sprintf("%s(%s)", c.Method.Name(), types.TypeString(c.Param, pkgName))
	if c.Strict {
		s += " [strict]"
	}
	return s
}

// Malformed is a Wrap method that cannot serve as a conversion.
type Malformed struct {
	Method *types.Func
	Reason string
}

func (m Malformed) String() string {
	return fmt.Sprintf("%s (%s)", m.Method.Name(), m.Reason)
}

// Table is the capability set of one interpolator type.
type Table struct {
	Elem        types.Type
	Conversions map[ConversionKey]*Conversion
	// Inline is the Inlined(string) T method, if any. It never takes part
	// in automatic resolution.
	Inline    *types.Func
	Malformed []Malformed

	order []ConversionKey
}

// NewTable collects the capability methods of recv whose result is elem.
// Promoted methods and pointer-receiver methods of addressable values count.
func NewTable(recv, elem types.Type, dirs Directives) *Table {
	t := &Table{
		Elem:        elem,
		Conversions: make(map[ConversionKey]*Conversion),
	}
	for _, sel := range typeutil.IntuitiveMethodSet(recv, nil) {
		fn, ok := sel.Obj().(*types.Func)
		if !ok || !fn.Exported() {
			continue
		}
		sig, _ := sel.Type().(*types.Signature)
		if sig == nil {
			continue
		}
		switch name := fn.Name(); {
		case name == inlineMethod:
			t.addInline(fn, sig)
		case strings.HasPrefix(name, wrapPrefix):
			t.addWrap(fn, sig, dirs)
		}
	}
	sort.Slice(t.order, func(i, j int) bool { return t.order[i] < t.order[j] })
	return t
}

func (t *Table) addInline(fn *types.Func, sig *types.Signature) {
	if reason := t.checkSignature(sig); reason != "" {
		t.Malformed = append(t.Malformed, Malformed{Method: fn, Reason: reason})
		return
	}
	if !types.Identical(sig.Params().At(0).Type(), types.Typ[types.String]) {
		t.Malformed = append(t.Malformed, Malformed{Method: fn, Reason: "parameter is not string"})
		return
	}
	t.Inline = fn
}

func (t *Table) addWrap(fn *types.Func, sig *types.Signature, dirs Directives) {
	if reason := t.checkSignature(sig); reason != "" {
		t.Malformed = append(t.Malformed, Malformed{Method: fn, Reason: reason})
		return
	}
	param := sig.Params().At(0).Type()
	key := KeyOf(param)
	if prev, dup := t.Conversions[key]; dup {
		t.Malformed = append(t.Malformed, Malformed{
			Method: fn,
			Reason: fmt.Sprintf("same parameter type as %s", prev.Method.Name()),
		})
		return
	}
	strict := false
	if dirs != nil {
		strict = dirs.Strict(fn)
	}
	t.Conversions[key] = &Conversion{Method: fn, Param: param, Strict: strict}
	t.order = append(t.order, key)
}

func (t *Table) checkSignature(sig *types.Signature) string {
	switch {
	case sig.TypeParams().Len() > 0:
		return "generic method"
	case sig.Variadic():
		return "variadic"
	case sig.Params().Len() != 1:
		return fmt.Sprintf("takes %d parameters, want 1", sig.Params().Len())
	case sig.Results().Len() != 1:
		return fmt.Sprintf("returns %d values, want 1", sig.Results().Len())
	case !types.Identical(sig.Results().At(0).Type(), t.Elem):
		return fmt.Sprintf("returns %s, want %s",
			types.TypeString(sig.Results().At(0).Type(), pkgName),
			types.TypeString(t.Elem, pkgName))
	}
	return ""
}

// HasWraps reports whether any conversion is declared.
func (t *Table) HasWraps() bool { return len(t.order) > 0 }

// Candidates returns the conversions ordered by key.
func (t *Table) Candidates() []*Conversion {
	out := make([]*Conversion, len(t.order))
	for i, k := range t.order {
		out[i] = t.Conversions[k]
	}
	return out
}

func pkgName(p *types.Package) string { return p.Name() }
