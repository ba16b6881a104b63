package transform

import "context"

func init() {
	Register("file", func(Env, func(any) error) (Transformer, error) { return fileLoader{}, nil })
}

// fileLoader passes content through; emission is decided by the rule output.
type fileLoader struct{}

func (fileLoader) Name() string                            { return "file" }
func (fileLoader) Transform(context.Context, *Asset) error { return nil }
