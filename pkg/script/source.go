// Package script reads the command records driving a run.
//
// A record is five whitespace separated fields:
//
//	<delay seconds> <op code> <address> <units> <access code>
//
// All fields are decimal except the address, which is hexadecimal with an
// optional 0x prefix. Records may span lines.
package script

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/vmdriver/vmdriver/pkg/logflags"
	"github.com/vmdriver/vmdriver/pkg/vm"
)

// ErrMalformedCommand is wrapped by the error returned when a record is
// truncated or one of its fields cannot be parsed.
var ErrMalformedCommand = errors.New("malformed command")

var fieldNames = [...]string{"delay", "op code", "address", "units", "access code"}

// Source produces Commands from an input stream, in order. It follows the
// bufio.Scanner contract: call Scan until it returns false, then check Err.
type Source struct {
	sc   *bufio.Scanner
	cmd  vm.Command
	err  error
	n    int
	done bool
	log  logflags.Logger
}

// NewSource returns a Source reading from r.
func NewSource(r io.Reader) *Source {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	return &Source{sc: sc, log: logflags.ScriptLogger()}
}

// Scan advances to the next command. It returns false at the end of the
// input or at the first malformed record, after which it always returns
// false.
func (s *Source) Scan() bool {
	if s.done {
		return false
	}
	var fields [len(fieldNames)]string
	for i := range fields {
		if !s.sc.Scan() {
			s.done = true
			if err := s.sc.Err(); err != nil {
				s.err = errors.Wrap(err, "reading commands")
			} else if i > 0 {
				s.err = errors.Wrapf(ErrMalformedCommand, "record %d: missing %s", s.n+1, fieldNames[i])
			}
			s.log.Debugf("end of input after %d records", s.n)
			return false
		}
		fields[i] = s.sc.Text()
	}
	cmd, err := ParseFields(fields[:])
	if err != nil {
		s.done = true
		s.err = errors.WithMessagef(err, "record %d", s.n+1)
		s.log.WithError(s.err).Debug("intake stopped")
		return false
	}
	s.n++
	s.cmd = cmd
	s.log.Debugf("record %d: %s", s.n, cmd)
	return true
}

// Command returns the command read by the last successful call to Scan.
func (s *Source) Command() vm.Command {
	return s.cmd
}

// Err returns the error that ended the input, nil for a clean end of input.
func (s *Source) Err() error {
	return s.err
}

// Count returns the number of commands read so far.
func (s *Source) Count() int {
	return s.n
}

// ParseFields parses the five fields of a record. No range validation is
// done: unknown op codes and access codes are left to the executor.
func ParseFields(fields []string) (vm.Command, error) {
	if len(fields) != len(fieldNames) {
		return vm.Command{}, errors.Wrapf(ErrMalformedCommand, "expected %d fields, got %d", len(fieldNames), len(fields))
	}
	var ints [len(fieldNames)]int
	for i, f := range fields {
		if i == 2 {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return vm.Command{}, errors.Wrapf(ErrMalformedCommand, "%s %q", fieldNames[i], f)
		}
		ints[i] = n
	}
	addr, err := ParseAddr(fields[2])
	if err != nil {
		return vm.Command{}, err
	}
	return vm.Command{
		Delay:  ints[0],
		Op:     vm.OpCode(ints[1]),
		Addr:   addr,
		Units:  ints[3],
		Access: vm.AccessCode(ints[4]),
	}, nil
}

// ParseAddr parses a hexadecimal address with an optional 0x prefix.
func ParseAddr(s string) (uintptr, error) {
	h := s
	if strings.HasPrefix(h, "0x") || strings.HasPrefix(h, "0X") {
		h = h[2:]
	}
	n, err := strconv.ParseUint(h, 16, strconv.IntSize)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedCommand, "address %q", s)
	}
	return uintptr(n), nil
}
