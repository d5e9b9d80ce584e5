package vm

import (
	"strconv"

	"github.com/pkg/errors"
)

// Protection is the access protection applied to committed pages.
type Protection int

const (
	ReadOnly Protection = iota + 1
	ReadWrite
	Execute
	ExecuteRead
	ExecuteReadWrite
	NoAccess
)

var protectionNames = [...]string{
	ReadOnly:         "PAGE_READONLY",
	ReadWrite:        "PAGE_READWRITE",
	Execute:          "PAGE_EXECUTE",
	ExecuteRead:      "PAGE_EXECUTE_READ",
	ExecuteReadWrite: "PAGE_EXECUTE_READWRITE",
	NoAccess:         "PAGE_NOACCESS",
}

func (p Protection) String() string {
	if p < ReadOnly || p > NoAccess {
		return "Protection(" + strconv.Itoa(int(p)) + ")"
	}
	return protectionNames[p]
}

// Readable returns true if pages with this protection can be read.
// Execute implies read on every platform we run on.
func (p Protection) Readable() bool {
	switch p {
	case ReadOnly, ReadWrite, Execute, ExecuteRead, ExecuteReadWrite:
		return true
	}
	return false
}

// Writable returns true if pages with this protection can be written.
func (p Protection) Writable() bool {
	return p == ReadWrite || p == ExecuteReadWrite
}

// Executable returns true if pages with this protection can be executed.
func (p Protection) Executable() bool {
	return p == Execute || p == ExecuteRead || p == ExecuteReadWrite
}

// ResolveAccess maps a scripted access code onto a Protection. Codes
// outside 1..6 have no mapping and return ErrInvalidAccessCode.
func ResolveAccess(code AccessCode) (Protection, error) {
	if code < AccessCode(ReadOnly) || code > AccessCode(NoAccess) {
		return 0, errors.Wrapf(ErrInvalidAccessCode, "access code %d", int(code))
	}
	return Protection(code), nil
}
