//go:build !cgo

package transform

import (
	"context"
	"errors"
)

func init() { Register("sass", newSass) }

// errSassUnavailable is returned by builds without cgo, where libsass cannot be linked.
var errSassUnavailable = errors.New("sass loader requires a cgo-enabled build (libsass)")

type sass struct{}

func newSass(Env, func(any) error) (Transformer, error) { return sass{}, nil }

func (sass) Name() string                            { return "sass" }
func (sass) Transform(context.Context, *Asset) error { return errSassUnavailable }
