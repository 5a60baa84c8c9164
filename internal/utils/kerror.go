package util

import "fmt"

// KernelError describes an unrecoverable kernel condition. Code paths that
// detect a broken invariant panic with a *KernelError; the only component
// expected to recover it is the top-level command, which halts.
type KernelError struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string

	Cause   error
	Context map[string]interface{}
}

func (e *KernelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] unrecoverable error: %s (caused by: %v)", e.Module, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] unrecoverable error: %s", e.Module, e.Message)
}

func (e *KernelError) Unwrap() error {
	return e.Cause
}

// With attaches a context value and returns the error for chaining.
func (e *KernelError) With(key string, value interface{}) *KernelError {
	e.Context[key] = value
	return e
}

// NewKernelError creates a new kernel error
func NewKernelError(module, message string, cause error) *KernelError {
	return &KernelError{
		Module:  module,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}
