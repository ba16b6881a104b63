// Package transform provides the loader registry and loader chains.
//
// A loader is a pure content-to-content step delegated to a third-party
// library (libsass, esbuild, jade, html/template, tdewolff/minify). Rules
// list loaders outermost first, so a Chain applies them right to left: the
// last loader sees the source file and the first produces the final output.
// The first failure aborts with a classified transform error naming the
// loader and the file.
package transform
