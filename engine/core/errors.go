package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrResourceCreation  = errors.New("resource creation failed")
	ErrInvalidDescriptor = errors.New("invalid resource descriptor")
	ErrUnsupportedFormat = errors.New("unsupported resource format")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// Assertf panics with an assertion failure when cond is false. It is used for
// programming errors in graph construction, which are never recoverable.
func Assertf(cond bool, format string, args ...interface{}) {
	if cond {
		return
	}
	err := errors.AssertionFailedWithDepthf(1, format, args...)
	LogError("%s", err.Error())
	panic(err)
}

// IsAssertionFailure reports whether a recovered panic value is an assertion
// raised by Assertf.
func IsAssertionFailure(recovered interface{}) bool {
	err, ok := recovered.(error)
	if !ok {
		return false
	}
	return errors.HasAssertionFailure(err)
}
