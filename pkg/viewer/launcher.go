// Package viewer shows the address space of a vmdriver process, either by
// starting an external visualization tool or by printing its memory map.
package viewer

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/cosiner/argv"
	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/vmdriver/vmdriver/pkg/logflags"
	"github.com/vmdriver/vmdriver/pkg/vm"
)

// DefaultDelay is how long Start waits for the viewer to come up.
const DefaultDelay = 5 * time.Second

// Launcher starts an external viewer for a process.
type Launcher struct {
	// Command is the command line of the viewer, the process id is
	// appended as its last argument.
	Command string
	// Delay is waited after a successful start.
	Delay time.Duration
	Clock clock.Clock

	Stdout, Stderr io.Writer
	Logger         logflags.Logger
}

// Launch starts the viewer for pid and returns without waiting for it.
func (l *Launcher) Launch(pid int) (*exec.Cmd, error) {
	v, err := argv.Argv(l.Command,
		func(s string) (string, error) {
			return "", fmt.Errorf("backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing viewer command %q", l.Command)
	}
	if len(v) != 1 || len(v[0]) == 0 {
		return nil, errors.Errorf("illegal viewer command %q", l.Command)
	}

	args := append(v[0][1:], strconv.Itoa(pid))
	cmd := exec.Command(v[0][0], args...)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// Start launches the viewer for the current process and waits Delay for
// it to attach. A viewer that cannot be started is reported and otherwise
// ignored.
func (l *Launcher) Start() {
	log := l.Logger
	if log == nil {
		log = logflags.ViewerLogger()
	}
	errOut := l.Stderr
	if errOut == nil {
		errOut = os.Stderr
	}

	pid := os.Getpid()
	cmd, err := l.Launch(pid)
	if err != nil {
		fmt.Fprintln(errOut, vm.Diagnose("CreateProcess", err))
		log.WithError(err).Warn("viewer not started")
		return
	}
	log.Infof("viewer %s started with pid %d for process %d", cmd.Path, cmd.Process.Pid, pid)
	go func() {
		err := cmd.Wait()
		log.WithError(err).Debugf("viewer %d exited", cmd.Process.Pid)
	}()

	if l.Delay > 0 {
		c := l.Clock
		if c == nil {
			c = clock.RealClock{}
		}
		c.Sleep(l.Delay)
	}
}
