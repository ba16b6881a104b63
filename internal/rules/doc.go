// Package rules routes source files to loader chains.
//
// Rules are evaluated in declaration order and the first matching rule
// governs a file; later overlapping rules are unreachable for it. Overlap is
// not an error: Analyze reports shadowed rules for the rules command, but
// Match never consults more than the first hit.
//
// The package also owns output naming. Name is a pure function of the
// template, the source path and (optionally) the content hash.
package rules
