package errors

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"validation", ValidationError("bad").Build(), 2},
		{"not found", NotFoundError("missing").Build(), 3},
		{"config", ConfigError("bad").Build(), 7},
		{"network", NetworkError("down").Build(), 8},
		{"internal", InternalError("bug").Build(), 10},
		{"transform", TransformError("sass").Build(), 11},
		{"filesystem", FileSystemError("disk").Build(), 11},
		{"runtime", RuntimeError("panic").Build(), 12},
		{"wrapped", fmt.Errorf("outer: %w", TransformError("sass").Build()), 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, nil)

	err := TransformError("sass compilation failed").
		WithContext("file", "scss/main.scss").
		WithContext("loader", "sass").
		WithCause(errors.New("undefined variable $brand")).
		Build()

	msg := quiet.FormatError(err)
	require.Contains(t, msg, "Transform failed: sass compilation failed")
	require.Contains(t, msg, "file: scss/main.scss")
	require.Contains(t, msg, "loader: sass")
	require.Contains(t, msg, "cause: undefined variable $brand")

	require.Equal(t, "Internal error occurred (use -v for details)", quiet.FormatError(InternalError("x").Build()))
	require.Equal(t, "Error: boom", quiet.FormatError(errors.New("boom")))

	verbose := NewCLIErrorAdapter(true, nil)
	require.Equal(t, err.Error(), verbose.FormatError(err))
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var logBuf, out bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logBuf, nil)))
	adapter.out = &out
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(ConfigError("output path is required").Build())

	require.Equal(t, 7, code)
	require.Contains(t, out.String(), "Configuration error: output path is required")
	require.Contains(t, logBuf.String(), "category=config")

	code = -1
	adapter.HandleError(nil)
	require.Equal(t, -1, code)
}
