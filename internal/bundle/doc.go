// Package bundle drives esbuild for the script and style chains.
//
// Scripts: one esbuild build covers every entry. A plugin runs the matching
// script rule chain on each module (files outside a script rule, such as
// dependency directories, are bundled untranspiled) and replaces style
// imports with empty modules while recording them. The per-entry style list
// is recovered in import order from the esbuild metafile.
//
// Styles: one esbuild CSS build over virtual chunk entries, each an @import
// of its members. A plugin runs the style rule chain on each member.
package bundle
