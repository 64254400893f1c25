package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which ownership operation produced the error
type Phase string

const (
	PhaseAdopt    Phase = "adopt"    // taking ownership of a value
	PhaseAccess   Phase = "access"   // reading the owned value
	PhaseReset    Phase = "reset"    // replacing the owned value
	PhaseDestroy  Phase = "destroy"  // running a destroyer
	PhaseClone    Phase = "clone"    // explicit value clone
	PhaseExport   Phase = "export"   // moving ownership into a handle table
	PhaseImport   Phase = "import"   // moving ownership out of a handle table
	PhaseAllocate Phase = "allocate" // guest memory allocation
	PhaseTable    Phase = "table"    // handle table bookkeeping
)

// Kind categorizes the error
type Kind string

const (
	KindEmpty         Kind = "empty"
	KindIllegalCopy   Kind = "illegal_copy"
	KindDoubleAdopt   Kind = "double_adopt"
	KindDestroyFailed Kind = "destroy_failed"
	KindDestroyPanic  Kind = "destroy_panic"
	KindNotFound      Kind = "not_found"
	KindTypeMismatch  Kind = "type_mismatch"
	KindClosed        Kind = "closed"
	KindBorrowed      Kind = "borrowed"
	KindInvalidInput  Kind = "invalid_input"
	KindAllocation    Kind = "allocation"
	KindCopyFailed    Kind = "copy_failed"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Is forwards to the standard library so callers need only this package
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As forwards to the standard library so callers need only this package
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Empty creates an error for an operation that needs a value on an empty owner
func Empty(phase Phase, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindEmpty,
		GoType: goType,
		Detail: "owner holds no value",
	}
}

// IllegalCopy creates an error for an owner used through a by-value copy
func IllegalCopy(phase Phase, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIllegalCopy,
		GoType: goType,
		Detail: "owner copied by value; owners must only be used through their original pointer",
	}
}

// DoubleAdopt creates an error for an address already held by a live owner
func DoubleAdopt(phase Phase, goType string, addr any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDoubleAdopt,
		GoType: goType,
		Detail: fmt.Sprintf("address %p is already owned", addr),
		Value:  addr,
	}
}

// DestroyFailed wraps an error returned by a destroyer
func DestroyFailed(goType string, cause error) *Error {
	return &Error{
		Phase:  PhaseDestroy,
		Kind:   KindDestroyFailed,
		GoType: goType,
		Detail: "destroyer returned an error",
		Cause:  cause,
	}
}

// DestroyPanic converts a value recovered from a panicking destroyer
func DestroyPanic(goType string, recovered any) *Error {
	e := &Error{
		Phase:  PhaseDestroy,
		Kind:   KindDestroyPanic,
		GoType: goType,
		Detail: fmt.Sprintf("destroyer panicked: %v", recovered),
		Value:  recovered,
	}
	if err, ok := recovered.(error); ok {
		e.Cause = err
	}
	return e
}

// NotFound creates a not-found error
func NotFound(phase Phase, what string, handle uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %d not found", what, handle),
		Value:  handle,
	}
}

// TypeMismatch creates an error for a value of an unexpected Go type
func TypeMismatch(phase Phase, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		GoType: want,
		Detail: fmt.Sprintf("found %s", got),
	}
}

// Closed creates an error for an operation on a closed table
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", what),
	}
}

// Borrowed creates an error for a handle that still has outstanding borrows
func Borrowed(phase Phase, handle uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBorrowed,
		Detail: fmt.Sprintf("handle %d has outstanding borrows", handle),
		Value:  handle,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(size, align uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseAllocate,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
