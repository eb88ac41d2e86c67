// Package diag defines the diagnostic model shared by the graph passes,
// the pipeline and the CLI.
//
// Diagnostic is the central record: a Severity, a numeric Code with a stable
// prefixed ID (IR, SCF, OPT, IO, OBS), a short Message, a primary Location
// inside a graph and optional Notes.
//
// Passes return typed errors; the pipeline converts them into Diagnostics and
// collects them in a Bag, which supports limiting, sorting and deduplication.
// FormatGoldenDiagnostics renders a deterministic one-line-per-entry form used
// by golden tests and the short CLI output.
package diag
