package vm

import (
	"fmt"

	"github.com/pkg/errors"
)

// Outcome classifies an OperationResult.
type Outcome int

const (
	Succeeded Outcome = iota
	InvalidAccessCode
	GuardOnNoAccess
	UnknownOperation
	PlatformFailure
)

var outcomeNames = [...]string{
	Succeeded:         "success",
	InvalidAccessCode: "invalid_access_code",
	GuardOnNoAccess:   "guard_on_no_access",
	UnknownOperation:  "unknown_operation",
	PlatformFailure:   "platform_failure",
}

func (o Outcome) String() string {
	return outcomeNames[o]
}

// Outcomes lists every Outcome in declaration order.
func Outcomes() []Outcome {
	return []Outcome{Succeeded, InvalidAccessCode, GuardOnNoAccess, UnknownOperation, PlatformFailure}
}

// OperationResult is the outcome of executing one Command.
type OperationResult struct {
	Command Command
	// Protection is the resolved protection, zero if resolution failed.
	Protection Protection
	// Addr is the address returned by Reserve, Commit or Guard.
	Addr uintptr
	// Size is the extent in bytes handed to the platform.
	Size uintptr
	Err  error
}

// Succeeded returns true if the operation was performed without error.
func (r OperationResult) Succeeded() bool {
	return r.Err == nil
}

// Outcome classifies r.Err.
func (r OperationResult) Outcome() Outcome {
	switch {
	case r.Err == nil:
		return Succeeded
	case errors.Is(r.Err, ErrInvalidAccessCode):
		return InvalidAccessCode
	case errors.Is(r.Err, ErrGuardOnNoAccess):
		return GuardOnNoAccess
	case errors.Is(r.Err, ErrUnknownOperation):
		return UnknownOperation
	}
	return PlatformFailure
}

// Diagnostic returns the one line message describing the result.
func (r OperationResult) Diagnostic() string {
	var perr *PlatformError
	switch r.Outcome() {
	case Succeeded:
		return r.Command.Op.String() + " succeeded"
	case InvalidAccessCode:
		return "Access Level input is invalid"
	case GuardOnNoAccess:
		return "Guard Page not allowed with NO_ACCESS flag"
	case UnknownOperation:
		return fmt.Sprintf("Unknown VM operation %d", int(r.Command.Op))
	}
	if errors.As(r.Err, &perr) {
		return Diagnose(perr.Op.String(), perr.Err)
	}
	return r.Err.Error()
}
