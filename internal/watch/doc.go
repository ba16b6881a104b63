// Package watch rebuilds on source changes. Filesystem notifications are
// debounced into rebuild requests and a single worker runs the builds; an
// optional poller covers filesystems where notifications are unreliable.
package watch
