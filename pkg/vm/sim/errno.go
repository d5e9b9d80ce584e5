package sim

import "fmt"

// Errno is an error returned by the simulated address space. The values
// are the codes the Windows memory manager reports for the same
// conditions.
type Errno int64

const (
	ErrNotEnoughMemory    Errno = 8
	ErrInvalidParameter   Errno = 87
	ErrNotLocked          Errno = 158
	ErrInvalidAddress     Errno = 487
	ErrNoAccess           Errno = 998
	ErrGuardPageViolation Errno = 0x80000001
	ErrAccessViolation    Errno = 0xC0000005
)

var errnoMessages = map[Errno]string{
	ErrNotEnoughMemory:    "Not enough memory resources are available to process this command.",
	ErrInvalidParameter:   "The parameter is incorrect.",
	ErrNotLocked:          "The segment is already unlocked.",
	ErrInvalidAddress:     "Attempt to access invalid address.",
	ErrNoAccess:           "Invalid access to memory location.",
	ErrGuardPageViolation: "Guard page violation.",
	ErrAccessViolation:    "Access violation.",
}

func (e Errno) Error() string {
	if msg, ok := errnoMessages[e]; ok {
		return msg
	}
	return fmt.Sprintf("errno %d", int64(e))
}

// Code returns the numeric error code.
func (e Errno) Code() int64 {
	return int64(e)
}
