// Package protocol is the runtime contract between interpolator libraries and
// the code produced by the interpol rewrite pass.
//
// # Entry points
//
// A library declares an interpolator by giving a type two methods: an entry
// point that user code calls, and a backend that the rewritten call site
// calls instead.
//
//	func (q *Query) Invoke(fragments ...any) *Stmt
//	func (q *Query) Interpolate(parts func() []string, params func() []any) *Stmt
//
// User code writes
//
//	q.Invoke("select * from users where id = ", id)
//
// and the pass rewrites it into
//
//	q.Interpolate(
//		func() []string { return []string{"select * from users where id = ", ""} },
//		func() []any { return []any{protocol.Guard(protocol.SlotInfo{...}, func() any { return id })} },
//	)
//
// The backend always receives a canonical template: len(parts) == len(params)+1.
//
// # Capabilities
//
// Exported methods whose name starts with Wrap and that take one argument and
// return the element type form the capability set. The pass picks one per slot
// by static type. A wrap method whose doc comment carries the directive
//
//	//interpol:strict
//
// only matches slots of exactly its parameter type. Inlined(string) T is the
// inline conversion; it is never chosen automatically.
//
// # Batching
//
// InvokeBatch(func(A) []any) R and InterpolateBatch(parts, func(A) []T) R form
// the record-parameterized variant: parts stay record independent, params are
// computed per record.
//
// # Composition
//
// Libraries whose params may themselves be templates build a Splice and call
// Flatten to get one canonical Template.
package protocol
