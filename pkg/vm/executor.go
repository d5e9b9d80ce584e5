package vm

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/vmdriver/vmdriver/pkg/logflags"
)

const (
	// DefaultPageSize is the size of a commit unit in bytes.
	DefaultPageSize = 4096
	// DefaultReserveUnit is the size of a reservation unit in bytes, the
	// allocation granularity.
	DefaultReserveUnit = 65536
)

// Config holds the executor's collaborators and unit sizes.
type Config struct {
	// PageSize is the byte size of a unit for every operation other than
	// Reserve and Guard, and the stride of Touch.
	PageSize int
	// ReserveUnit is the byte size of a unit for Reserve and Guard.
	ReserveUnit int

	// Clock implements the delay before each operation.
	Clock clock.Clock

	// Out receives the per-command trace, ErrOut the platform diagnostics.
	Out    io.Writer
	ErrOut io.Writer

	// Diagnose formats platform failures, Diagnose from this package is
	// used if nil.
	Diagnose func(name string, err error) string

	Logger  logflags.Logger
	Metrics *Metrics
}

// operation is one entry of the dispatch table.
type operation struct {
	// extent returns the byte size handed to the platform for units.
	extent func(e *Executor, units int) uintptr
	// run performs the platform call and returns the resulting address.
	run func(e *Executor, cmd Command, size uintptr, prot Protection) (uintptr, error)
}

var operations = map[OpCode]operation{
	OpReserve: {
		extent: reserveExtent,
		run: func(e *Executor, cmd Command, size uintptr, prot Protection) (uintptr, error) {
			return e.platform.Reserve(cmd.Addr, size, prot)
		},
	},
	OpCommit: {
		extent: pageExtent,
		run: func(e *Executor, cmd Command, size uintptr, prot Protection) (uintptr, error) {
			return e.platform.Commit(cmd.Addr, size, prot)
		},
	},
	OpTouch: {
		extent: pageExtent,
		run:    touch,
	},
	OpLock: {
		extent: pageExtent,
		run: func(e *Executor, cmd Command, size uintptr, prot Protection) (uintptr, error) {
			return cmd.Addr, e.platform.Lock(cmd.Addr, size)
		},
	},
	OpUnlock: {
		extent: pageExtent,
		run: func(e *Executor, cmd Command, size uintptr, prot Protection) (uintptr, error) {
			return cmd.Addr, e.platform.Unlock(cmd.Addr, size)
		},
	},
	OpGuard: {
		extent: reserveExtent,
		run: func(e *Executor, cmd Command, size uintptr, prot Protection) (uintptr, error) {
			return e.platform.Guard(cmd.Addr, size, prot)
		},
	},
	OpDecommit: {
		extent: pageExtent,
		run: func(e *Executor, cmd Command, size uintptr, prot Protection) (uintptr, error) {
			return cmd.Addr, e.platform.Decommit(cmd.Addr, size)
		},
	},
	OpRelease: {
		extent: func(*Executor, int) uintptr { return WholeRegion },
		run: func(e *Executor, cmd Command, size uintptr, prot Protection) (uintptr, error) {
			return cmd.Addr, e.platform.Release(cmd.Addr, size)
		},
	},
}

func reserveExtent(e *Executor, units int) uintptr {
	return uintptr(units) * uintptr(e.conf.ReserveUnit)
}

func pageExtent(e *Executor, units int) uintptr {
	return uintptr(units) * uintptr(e.conf.PageSize)
}

// touch reads one word from each of the first cmd.Units pages starting at
// cmd.Addr and stops at the first page that cannot be read.
func touch(e *Executor, cmd Command, size uintptr, prot Protection) (uintptr, error) {
	for i := 0; i < cmd.Units; i++ {
		addr := cmd.Addr + uintptr(i)*uintptr(e.conf.PageSize)
		if err := e.platform.Touch(addr); err != nil {
			return addr, err
		}
		fmt.Fprintf(e.conf.Out, "Touching %s \n", FormatAddr(addr))
	}
	return cmd.Addr, nil
}

// Executor applies Commands to a Platform, one at a time.
type Executor struct {
	platform Platform
	conf     Config
	log      logflags.Logger
}

// NewExecutor returns an Executor for platform. Zero fields of conf are
// replaced with defaults.
func NewExecutor(platform Platform, conf Config) *Executor {
	if conf.PageSize <= 0 {
		conf.PageSize = DefaultPageSize
	}
	if conf.ReserveUnit <= 0 {
		conf.ReserveUnit = DefaultReserveUnit
	}
	if conf.Clock == nil {
		conf.Clock = clock.RealClock{}
	}
	if conf.Out == nil {
		conf.Out = os.Stdout
	}
	if conf.ErrOut == nil {
		conf.ErrOut = os.Stderr
	}
	if conf.Diagnose == nil {
		conf.Diagnose = Diagnose
	}
	if conf.Logger == nil {
		conf.Logger = logflags.ExecutorLogger()
	}
	return &Executor{platform: platform, conf: conf, log: conf.Logger}
}

// Execute waits cmd.Delay seconds, then performs cmd and reports the
// outcome. Failures are reported and returned in the result, they never
// stop the executor.
func (e *Executor) Execute(cmd Command) OperationResult {
	if cmd.Delay > 0 {
		e.conf.Clock.Sleep(time.Duration(cmd.Delay) * time.Second)
	}

	res := OperationResult{Command: cmd}

	// The protection is resolved before dispatch, even for operations
	// that do not use it.
	prot, err := ResolveAccess(cmd.Access)
	if err != nil {
		fmt.Fprintln(e.conf.Out, "Access Level input is invalid")
		res.Err = err
	} else {
		res.Protection = prot
		e.dispatch(cmd, prot, &res)
		e.report(res)
	}

	fmt.Fprintf(e.conf.Out, "Processed %s\n", cmd)

	log := e.log.WithFields(logflags.Fields{"op": cmd.Op, "addr": FormatAddr(cmd.Addr), "units": cmd.Units, "outcome": res.Outcome()})
	if res.Err != nil {
		log.WithError(res.Err).Debug("operation failed")
	} else {
		log.Debugf("operation succeeded at %s, %d bytes", FormatAddr(res.Addr), res.Size)
	}
	e.conf.Metrics.observe(res)
	return res
}

func (e *Executor) dispatch(cmd Command, prot Protection, res *OperationResult) {
	op, ok := operations[cmd.Op]
	if !ok {
		res.Err = errors.Wrapf(ErrUnknownOperation, "op code %d", int(cmd.Op))
		return
	}
	if cmd.Op == OpGuard && prot == NoAccess {
		res.Err = errors.WithStack(ErrGuardOnNoAccess)
		return
	}
	res.Size = op.extent(e, cmd.Units)
	addr, err := op.run(e, cmd, res.Size, prot)
	res.Addr = addr
	if err != nil {
		res.Err = &PlatformError{Op: cmd.Op, Err: err}
	}
}

func (e *Executor) report(res OperationResult) {
	switch res.Outcome() {
	case Succeeded:
		switch res.Command.Op {
		case OpReserve, OpCommit, OpGuard:
			fmt.Fprintf(e.conf.Out, "%s succeeded at %s (%d bytes, %s)\n", res.Command.Op, FormatAddr(res.Addr), res.Size, res.Protection)
		case OpRelease:
			fmt.Fprintf(e.conf.Out, "%s succeeded at %s (whole region)\n", res.Command.Op, FormatAddr(res.Addr))
		default:
			fmt.Fprintf(e.conf.Out, "%s succeeded at %s (%d bytes)\n", res.Command.Op, FormatAddr(res.Addr), res.Size)
		}
	case PlatformFailure:
		var perr *PlatformError
		fmt.Fprintf(e.conf.Out, "%s failed.\n", res.Command.Op)
		if errors.As(res.Err, &perr) {
			fmt.Fprintln(e.conf.ErrOut, e.conf.Diagnose(perr.Op.String(), perr.Err))
		}
	default:
		fmt.Fprintln(e.conf.Out, res.Diagnostic())
	}
}
