package vm

import (
	"fmt"
	"syscall"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidAccessCode is returned when an access code is outside 1..6.
	ErrInvalidAccessCode = errors.New("access level input is invalid")
	// ErrGuardOnNoAccess is returned when a guard page is requested with
	// the NoAccess protection. The platform is never called.
	ErrGuardOnNoAccess = errors.New("guard page not allowed with NO_ACCESS flag")
	// ErrUnknownOperation is returned for op codes outside 1..8.
	ErrUnknownOperation = errors.New("unknown VM operation")
)

// PlatformError is a failure reported by the Platform while performing an
// operation.
type PlatformError struct {
	Op  OpCode
	Err error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// Cause allows errors.Cause to reach the platform's own error.
func (e *PlatformError) Cause() error {
	return e.Err
}

// codedError is implemented by platform errors that carry a numeric code
// but are not syscall.Errno values.
type codedError interface {
	error
	Code() int64
}

// ErrorCode extracts the OS level error code carried by err.
func ErrorCode(err error) (int64, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int64(errno), true
	}
	var coded codedError
	if errors.As(err, &coded) {
		return coded.Code(), true
	}
	return 0, false
}

// Diagnose formats a human readable message for a failure of the named
// operation, including the OS error code when one is available.
func Diagnose(name string, err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return fmt.Sprintf("%s failed on error %d: %s", name, uintptr(errno), errno.Error())
	}
	var coded codedError
	if errors.As(err, &coded) {
		return fmt.Sprintf("%s failed on error %d: %s", name, coded.Code(), coded.Error())
	}
	return fmt.Sprintf("%s failed: %v", name, err)
}
