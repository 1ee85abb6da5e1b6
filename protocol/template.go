package protocol

import (
	"fmt"
	"strings"
)

// MismatchedArityError reports a template whose parts and params violate
// len(parts) == len(params)+1.
type MismatchedArityError struct {
	Parts  int
	Params int
}

func (e *MismatchedArityError) Error() string {
	return fmt.Sprintf("mismatched template arity: %d parts for %d params (want %d parts)", e.Parts, e.Params, e.Params+1)
}

// CheckArity returns *MismatchedArityError unless parts == params+1.
func CheckArity(parts, params int) error {
	if parts != params+1 {
		return &MismatchedArityError{Parts: parts, Params: params}
	}
	return nil
}

// Template is the canonical two-list form every backend receives.
type Template[T any] struct {
	Parts  []string
	Params []T
}

// Collect runs both producers once and validates the result.
// Parts are produced before params, matching the order backends see them.
func Collect[T any](parts func() []string, params func() []T) (Template[T], error) {
	t := Template[T]{Parts: parts(), Params: params()}
	if err := t.Validate(); err != nil {
		return Template[T]{}, err
	}
	return t, nil
}

// CollectBatch is Collect for one record of a batching interpolator.
func CollectBatch[T, A any](parts func() []string, params func(A) []T, record A) (Template[T], error) {
	t := Template[T]{Parts: parts(), Params: params(record)}
	if err := t.Validate(); err != nil {
		return Template[T]{}, err
	}
	return t, nil
}

// Validate checks the arity invariant.
func (t Template[T]) Validate() error {
	return CheckArity(len(t.Parts), len(t.Params))
}

// Render interlaces parts and formatted params in template order.
func (t Template[T]) Render(format func(T) string) string {
	var b strings.Builder
	for i, part := range t.Parts {
		b.WriteString(part)
		if i < len(t.Params) {
			b.WriteString(format(t.Params[i]))
		}
	}
	return b.String()
}

// Equal compares parts and params with eq.
func (t Template[T]) Equal(other Template[T], eq func(a, b T) bool) bool {
	if len(t.Parts) != len(other.Parts) || len(t.Params) != len(other.Params) {
		return false
	}
	for i := range t.Parts {
		if t.Parts[i] != other.Parts[i] {
			return false
		}
	}
	for i := range t.Params {
		if !eq(t.Params[i], other.Params[i]) {
			return false
		}
	}
	return true
}
