package protocol

import (
	"errors"
	"fmt"
)

// ErrNotRewritten is raised by entry points that run without the pass applied.
var ErrNotRewritten = errors.New("interpolator entry point called without interpol rewrite")

// Interpolator is the plain interpolator contract. T is the element type every
// param is converted to, R the result of one interpolation.
type Interpolator[T, R any] interface {
	Invoke(fragments ...any) R
	Interpolate(parts func() []string, params func() []T) R
}

// InterpolatorWithWrapper adds the inline conversion. Wrap methods are not part
// of the interface: they are found by name in the implementing type's method set.
type InterpolatorWithWrapper[T, R any] interface {
	Interpolator[T, R]
	Inlined(text string) T
}

// InterpolatorBatching produces one template per record of type A.
type InterpolatorBatching[T, A, R any] interface {
	InvokeBatch(fragments func(A) []any) R
	InterpolateBatch(parts func() []string, params func(A) []T) R
}

// InterpolatorBatchingWithWrapper is the batching variant with capabilities.
type InterpolatorBatchingWithWrapper[T, A, R any] interface {
	InterpolatorBatching[T, A, R]
	Inlined(text string) T
}

// NotRewrittenError reports which entry point ran unrewritten.
type NotRewrittenError struct {
	Method string
}

func (e *NotRewrittenError) Error() string {
	return fmt.Sprintf("%s: %v", e.Method, ErrNotRewritten)
}

func (e *NotRewrittenError) Unwrap() error { return ErrNotRewritten }

// NotRewritten panics with *NotRewrittenError. Entry points call it when they
// have no meaningful fallback for unrewritten use.
func NotRewritten(method string) {
	panic(&NotRewrittenError{Method: method})
}
