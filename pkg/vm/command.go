// Package vm implements the virtual memory operation state machine: it
// maps a scripted Command onto exactly one region transition of a Platform
// and reports the outcome.
package vm

import (
	"fmt"
	"strconv"
)

// OpCode selects the region transition performed by a Command.
type OpCode int

const (
	OpReserve OpCode = iota + 1
	OpCommit
	OpTouch
	OpLock
	OpUnlock
	OpGuard
	OpDecommit
	OpRelease
)

var opNames = [...]string{
	OpReserve:  "Reserve",
	OpCommit:   "Commit",
	OpTouch:    "Touch",
	OpLock:     "Lock",
	OpUnlock:   "Unlock",
	OpGuard:    "Guard",
	OpDecommit: "Decommit",
	OpRelease:  "Release",
}

// Valid returns true if op names one of the eight region transitions.
func (op OpCode) Valid() bool {
	return op >= OpReserve && op <= OpRelease
}

func (op OpCode) String() string {
	if !op.Valid() {
		return "OpCode(" + strconv.Itoa(int(op)) + ")"
	}
	return opNames[op]
}

// AccessCode is the scripted access protection code, 1 through 6.
type AccessCode int

// Command is a single scripted virtual memory operation.
type Command struct {
	// Delay is the number of seconds to wait before performing the operation.
	Delay int
	Op    OpCode
	Addr  uintptr
	// Units is the extent of the operation. Its size in bytes depends on Op.
	Units  int
	Access AccessCode
}

// String returns the command in the same shape it is read from a script.
func (c Command) String() string {
	return fmt.Sprintf("%d %d %s %d %d", c.Delay, int(c.Op), FormatAddr(c.Addr), c.Units, int(c.Access))
}

// FormatAddr formats addr as a zero padded pointer sized hex value.
func FormatAddr(addr uintptr) string {
	return fmt.Sprintf("0x%0*X", strconv.IntSize/4, addr)
}
