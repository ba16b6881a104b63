// Package build runs one pass of the asset pipeline.
//
// A Builder executes a fixed list of named stages against a BuildState:
//
//	prepare_output -> discover_sources -> route_sources -> bundle_scripts ->
//	bundle_styles -> emit_files -> run_plugins -> emit_output
//
// Stages fill a Compilation, the in-memory set of output files. Nothing is
// written until the final stage hands the Compilation to an Emitter, so a
// failed build leaves the previous output untouched. DiskEmitter writes
// through a sibling staging directory and swaps it into place; MemoryEmitter
// publishes an immutable snapshot for the development server.
//
// Every run produces a Report with per-stage durations and classifications.
package build
