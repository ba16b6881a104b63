// Package devserver serves the in-memory build output during development,
// with an on-disk fallback, live reload and a build error page.
package devserver
