package terminal

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-delve/liner"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/vmdriver/vmdriver/pkg/logflags"
	"github.com/vmdriver/vmdriver/pkg/script"
	"github.com/vmdriver/vmdriver/pkg/vm"
)

// DefaultPrompt is printed before every command is read.
const DefaultPrompt = "next VM command: "

const (
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"

	ansiRed    = 31
	ansiGreen  = 32
	ansiYellow = 33
)

// Config configures a Term.
type Config struct {
	Prompt string

	// In is where commands are read from, os.Stdin if nil. When In is a
	// terminal the prompt and line editing are handled by liner.
	In io.Reader
	// Out receives prompts, the summary and statistics. It should be the
	// writer the executor reports to.
	Out    io.Writer
	ErrOut io.Writer
	// Color enables ANSI colors in the summary.
	Color bool

	// KeepAlive makes Run wait for SIGINT or SIGTERM, or for its context
	// to be cancelled, after the last command.
	KeepAlive bool

	// Stats prints the memory usage of the process after every command.
	Stats       bool
	MemoryStats func() (MemoryStats, error)

	Logger logflags.Logger
}

// Term reads commands and hands them to an Executor, one at a time.
type Term struct {
	exec   *vm.Executor
	conf   Config
	line   *liner.State
	dumb   bool
	stdout io.Writer
	log    logflags.Logger
}

// New returns a new Term.
func New(exec *vm.Executor, conf Config) *Term {
	if conf.Prompt == "" {
		conf.Prompt = DefaultPrompt
	}
	if conf.In == nil {
		conf.In = os.Stdin
	}
	if conf.ErrOut == nil {
		conf.ErrOut = os.Stderr
	}
	if conf.MemoryStats == nil {
		conf.MemoryStats = processMemory
	}
	if conf.Logger == nil {
		conf.Logger = logflags.ExecutorLogger()
	}

	w := conf.Out
	if w == nil {
		w = Writer()
	}

	t := &Term{exec: exec, conf: conf, dumb: !conf.Color, stdout: w, log: conf.Logger}
	if f, ok := conf.In.(*os.File); ok && isTerminal(f) {
		t.line = liner.NewLiner()
		t.line.SetCtrlCAborts(true)
	}
	return t
}

// Writer returns a writer for standard output that interprets ANSI escape
// codes.
func Writer() io.Writer {
	return getColorableWriter()
}

// ColorEnabled returns true if standard output is a terminal that can
// display colors.
func ColorEnabled() bool {
	return strings.ToLower(os.Getenv("TERM")) != "dumb" && isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	if t.line != nil {
		t.line.Close()
	}
}

// Run executes commands until the input ends, prints a summary and then,
// if configured, waits until ctx is cancelled or the process is
// interrupted. A malformed command ends the input like the end of the
// stream does; only read errors are returned.
func (t *Term) Run(ctx context.Context) (Summary, error) {
	sum := Summary{Outcomes: make(map[vm.Outcome]int)}

	var in io.Reader = t.conf.In
	if t.line != nil {
		in = &promptReader{t: t}
	}
	src := script.NewSource(in)

	for {
		if t.line == nil {
			fmt.Fprint(t.stdout, t.conf.Prompt)
		}
		if !src.Scan() {
			break
		}
		res := t.exec.Execute(src.Command())
		sum.Add(res)
		if t.conf.Stats {
			t.printStats()
		}
	}
	t.Close()

	err := src.Err()
	if t.line == nil {
		fmt.Fprintln(t.stdout)
	}
	sum.Print(t)
	if err != nil {
		if !errors.Is(err, script.ErrMalformedCommand) {
			return sum, err
		}
		fmt.Fprintf(t.conf.ErrOut, "Stopped reading commands: %v\n", err)
	}

	if t.conf.KeepAlive {
		t.keepAlive(ctx)
	}
	return sum, nil
}

// keepAlive blocks until ctx is done or the process receives SIGINT or
// SIGTERM, so that the address space can still be inspected.
func (t *Term) keepAlive(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	fmt.Fprintf(t.conf.ErrOut, "All commands processed, process %d stays alive until interrupted.\n", os.Getpid())
	t.log.Debug("keep-alive")
	<-ctx.Done()
}

func (t *Term) printStats() {
	st, err := t.conf.MemoryStats()
	if err != nil {
		t.log.WithError(err).Warn("could not read memory statistics")
		return
	}
	fmt.Fprintf(t.stdout, "    %s\n", st)
}

// colorize wraps str in the escape codes for color, unless the output is
// not a color terminal.
func (t *Term) colorize(color int, str string) string {
	if t.dumb {
		return str
	}
	return fmt.Sprintf(terminalHighlightEscapeCode, color) + str + terminalResetEscapeCode
}

// promptReader reads one line at a time through liner, showing the prompt
// before each.
type promptReader struct {
	t   *Term
	buf []byte
	err error
}

func (r *promptReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		l, err := r.t.line.Prompt(r.t.conf.Prompt)
		if err != nil {
			if err != io.EOF && err != liner.ErrPromptAborted {
				r.t.log.WithError(err).Warn("prompt failed")
			}
			r.err = io.EOF
			continue
		}
		if l = strings.TrimSpace(l); l != "" {
			r.t.line.AppendHistory(l)
		}
		r.buf = append(r.buf, l...)
		r.buf = append(r.buf, '\n')
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
