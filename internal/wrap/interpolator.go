// Package wrap recognizes interpolator types and resolves how each slot value
// is converted to the interpolator's element type.
package wrap

import (
	"errors"
	"fmt"
	"go/types"
)

// ErrNotInterpolator reports a method call that is not an interpolator entry point.
var ErrNotInterpolator = errors.New("not an interpolator entry point")

// EntryPoint pairs an entry method with its backend.
type EntryPoint struct {
	Entry   string
	Backend string
	Batched bool
}

// EntryPoints lists the recognized entry methods by name.
var EntryPoints = map[string]EntryPoint{
	"Invoke":      {Entry: "Invoke", Backend: "Interpolate"},
	"InvokeBatch": {Entry: "InvokeBatch", Backend: "InterpolateBatch", Batched: true},
}

// Interpolator describes one recognized interpolator type.
type Interpolator struct {
	Recv    types.Type
	Point   EntryPoint
	Entry   *types.Func
	Backend *types.Func
	// Elem is T, Result is R. Record is A and is only set for batched entry points.
	Elem   types.Type
	Result types.Type
	Record types.Type
	Table  *Table
}

// BackendReason classifies backend problems.
type BackendReason uint8

const (
	BackendMalformed BackendReason = iota + 1
	BackendResultMismatch
)

// BackendError reports an entry point whose backend cannot be called in its place.
type BackendError struct {
	Reason  BackendReason
	Recv    types.Type
	Backend *types.Func
	Detail  string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s.%s: %s", types.TypeString(e.Recv, pkgName), e.Backend.Name(), e.Detail)
}

// Describe inspects the method set of recv for the entry point named method
// and its backend. It returns ErrNotInterpolator, possibly wrapped, when recv
// does not carry the interpolator shape.
func Describe(recv types.Type, method string, dirs Directives) (*Interpolator, error) {
	point, ok := EntryPoints[method]
	if !ok {
		return nil, ErrNotInterpolator
	}
	entry, entrySig := lookupMethod(recv, point.Entry)
	if entry == nil {
		return nil, ErrNotInterpolator
	}
	record, ok := entryShape(entrySig, point.Batched)
	if !ok {
		return nil, fmt.Errorf("%w: %s has an unexpected signature", ErrNotInterpolator, point.Entry)
	}
	backend, backendSig := lookupMethod(recv, point.Backend)
	if backend == nil {
		return nil, fmt.Errorf("%w: no %s method", ErrNotInterpolator, point.Backend)
	}

	in := &Interpolator{
		Recv:    recv,
		Point:   point,
		Entry:   entry,
		Backend: backend,
		Result:  entrySig.Results().At(0).Type(),
		Record:  record,
	}
	elem, result, detail := backendShape(backendSig, record)
	if detail != "" {
		return nil, &BackendError{Reason: BackendMalformed, Recv: recv, Backend: backend, Detail: detail}
	}
	if !types.Identical(result, in.Result) {
		return nil, &BackendError{
			Reason:  BackendResultMismatch,
			Recv:    recv,
			Backend: backend,
			Detail: fmt.Sprintf("returns %s but %s returns %s",
				types.TypeString(result, pkgName), point.Entry, types.TypeString(in.Result, pkgName)),
		}
	}
	in.Elem = elem
	in.Table = NewTable(recv, elem, dirs)
	return in, nil
}

func lookupMethod(recv types.Type, name string) (*types.Func, *types.Signature) {
	obj, _, _ := types.LookupFieldOrMethod(recv, true, nil, name)
	fn, ok := obj.(*types.Func)
	if !ok {
		return nil, nil
	}
	sig, _ := fn.Type().(*types.Signature)
	if sig == nil {
		return nil, nil
	}
	return fn, sig
}

// entryShape checks Invoke(...any) R or InvokeBatch(func(A) []any) R and
// returns A for the batched form.
func entryShape(sig *types.Signature, batched bool) (types.Type, bool) {
	if sig.Params().Len() != 1 || sig.Results().Len() != 1 || sig.TypeParams().Len() > 0 {
		return nil, false
	}
	param := sig.Params().At(0).Type()
	if !batched {
		return nil, sig.Variadic() && isAnySlice(param)
	}
	if sig.Variadic() {
		return nil, false
	}
	fn, ok := param.Underlying().(*types.Signature)
	if !ok || fn.Params().Len() != 1 || fn.Results().Len() != 1 || fn.Variadic() {
		return nil, false
	}
	if !isAnySlice(fn.Results().At(0).Type()) {
		return nil, false
	}
	return fn.Params().At(0).Type(), true
}

// backendShape checks Interpolate(func() []string, func() []T) R, or the
// batched form with func(A) []T, and returns T and R.
func backendShape(sig *types.Signature, record types.Type) (elem, result types.Type, detail string) {
	if sig.Params().Len() != 2 || sig.Results().Len() != 1 || sig.Variadic() {
		return nil, nil, "backend must take (parts, params) and return one value"
	}
	parts, ok := sig.Params().At(0).Type().Underlying().(*types.Signature)
	if !ok || parts.Params().Len() != 0 || parts.Results().Len() != 1 ||
		!types.Identical(parts.Results().At(0).Type(), types.NewSlice(types.Typ[types.String])) {
		return nil, nil, "first parameter must be func() []string"
	}
	params, ok := sig.Params().At(1).Type().Underlying().(*types.Signature)
	if !ok || params.Results().Len() != 1 || params.Variadic() {
		return nil, nil, "second parameter must be a params producer"
	}
	switch {
	case record == nil && params.Params().Len() != 0:
		return nil, nil, "second parameter must be func() []T"
	case record != nil && (params.Params().Len() != 1 || !types.Identical(params.Params().At(0).Type(), record)):
		return nil, nil, fmt.Sprintf("second parameter must be func(%s) []T", types.TypeString(record, pkgName))
	}
	slice, ok := params.Results().At(0).Type().Underlying().(*types.Slice)
	if !ok {
		return nil, nil, "params producer must return a slice"
	}
	return slice.Elem(), sig.Results().At(0).Type(), ""
}

func isAnySlice(t types.Type) bool {
	s, ok := t.Underlying().(*types.Slice)
	if !ok {
		return false
	}
	iface, ok := s.Elem().Underlying().(*types.Interface)
	return ok && iface.Empty()
}
