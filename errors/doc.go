// Package errors provides structured error types for owned handles.
//
// Errors are categorized by Phase (which ownership operation failed) and Kind
// (error category). The Error type carries the Go type of the owned value,
// a detail message, the offending value, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDestroy, errors.KindDestroyFailed).
//		GoType("*os.File").
//		Detail("close: %v", closeErr).
//		Cause(closeErr).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Empty(errors.PhaseAccess, "*os.File")
//	err := errors.DestroyPanic("*os.File", recovered)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
