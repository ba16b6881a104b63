// Package errors provides foundational, type-safe error primitives used across assetpipe.
//
// This package contains classified error types and helpers for robust error handling,
// including a fluent builder API for constructing ClassifiedError values with context.
//
// Key features:
//   - ErrorCategory: Broad error classification (config, transform, filesystem, server, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - RetryStrategy: Retry hint (never, immediate, backoff, user action)
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - HTTP and CLI adapters for error presentation
//
// Example usage:
//
//	err := errors.TransformError("sass compilation failed").
//		WithContext("file", "scss/main.scss").
//		WithContext("loader", "sass").
//		WithCause(originalErr).
//		Build()
package errors
