// Package plugins holds the post-processing steps run after the transform
// graph: clean, copy, imagemin, html and inline-svg. Each registers itself
// with the build package under its configuration name; importing this
// package for side effects makes them available.
package plugins
