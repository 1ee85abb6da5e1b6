// Package diag defines the diagnostic model shared by the loader, the rewrite
// pass and the driver.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity: tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Code: compact numeric identifier (see codes.go) with a stable string
//     form such as SHAPE2001 or WRAP3001.
//   - Message: human oriented text; keep it short and actionable.
//   - Primary span: the source.Span of the offending call site or slot.
//   - Notes: secondary messages, e.g. the list of wrap candidates that were
//     considered for a slot.
//
// # Producers
//
// Phases never write into a Bag directly: they receive a Reporter and build
// diagnostics through ReportBuilder (ReportError(...).WithNote(...).Emit()),
// which emits exactly once. BagReporter collects into a Bag, DedupReporter
// suppresses repeats, NopReporter discards.
//
// Package diag does not format anything for humans. Rendering lives in
// internal/diagfmt; FormatGoldenDiagnostics is the single stable line format
// used by tests and the "short" CLI output.
package diag
