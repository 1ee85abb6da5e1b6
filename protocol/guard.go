package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// SlotInfo describes one slot of a rewritten call site. The pass emits it as a
// composite literal next to every guarded evaluation.
type SlotInfo struct {
	// Text is the slot's source text.
	Text string
	// Exact is false when Text is a reconstruction rather than the original bytes.
	Exact bool
	// Ordinal is 1-based.
	Ordinal  int
	Total    int
	Location string
}

// Describe renders the slot for diagnostics.
func (s SlotInfo) Describe() string {
	var b strings.Builder
	if s.Exact {
		fmt.Fprintf(&b, "%q", s.Text)
	} else {
		fmt.Fprintf(&b, "approximately looking like %q", s.Text)
	}
	fmt.Fprintf(&b, " (slot %d of %d", s.Ordinal, s.Total)
	if s.Location != "" {
		b.WriteString(" at ")
		b.WriteString(s.Location)
	}
	b.WriteByte(')')
	return b.String()
}

// InterpolationError is raised, as a panic value, when evaluating a slot fails.
type InterpolationError struct {
	Slot  SlotInfo
	Cause error
}

func (e *InterpolationError) Error() string {
	return fmt.Sprintf("interpolation failed evaluating %s: %v", e.Slot.Describe(), e.Cause)
}

func (e *InterpolationError) Unwrap() error { return e.Cause }

// PanicError carries a recovered panic value that was not an error.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Guard evaluates one slot. A panic inside eval is re-raised as
// *InterpolationError with the original value kept as its cause.
func Guard[T any](slot SlotInfo, eval func() T) T {
	defer func() {
		if r := recover(); r != nil {
			panic(&InterpolationError{Slot: slot, Cause: asError(r)})
		}
	}()
	return eval()
}

func asError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &PanicError{Value: r}
}

// Recover converts an *InterpolationError panic into an error return. Other
// panics keep propagating. Use it as
//
//	defer protocol.Recover(&err)
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	var ie *InterpolationError
	if err, ok := r.(error); ok && errors.As(err, &ie) {
		*errp = ie
		return
	}
	panic(r)
}
