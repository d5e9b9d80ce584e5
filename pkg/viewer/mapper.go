package viewer

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"k8s.io/utils/clock"

	"github.com/vmdriver/vmdriver/pkg/vm"
)

// Mapping is one line of a process memory map.
type Mapping struct {
	Start, End uintptr
	Perms      string
	Path       string
}

// Size returns the length of the mapping in bytes.
func (m Mapping) Size() uintptr {
	return m.End - m.Start
}

// Anonymous returns true for mappings not backed by a file or a kernel
// pseudo region.
func (m Mapping) Anonymous() bool {
	return m.Path == ""
}

// Mapper prints the memory map of a process periodically.
type Mapper struct {
	// Root is the mount point of the proc filesystem, /proc if empty.
	Root string
	// Interval between two snapshots, Run prints a single snapshot if
	// zero.
	Interval time.Duration
	// AnonOnly skips file backed mappings.
	AnonOnly bool
	Clock    clock.Clock
	Out      io.Writer
}

// Run prints a snapshot of the memory map of pid every Interval until ctx
// is done.
func (m *Mapper) Run(ctx context.Context, pid int) error {
	c := m.Clock
	if c == nil {
		c = clock.RealClock{}
	}
	for {
		maps, err := m.Maps(pid)
		if err != nil {
			return err
		}
		fmt.Fprintf(m.Out, "process %d at %s\n", pid, c.Now().Format(time.RFC3339))
		if err := m.Print(maps); err != nil {
			return err
		}
		if m.Interval <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-c.After(m.Interval):
		}
	}
}

// Print writes maps as a table.
func (m *Mapper) Print(maps []Mapping) error {
	w := new(tabwriter.Writer)
	w.Init(m.Out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "START\tEND\tSIZE\tPERMS\tPATH")
	var total uintptr
	for _, mp := range maps {
		if m.AnonOnly && !mp.Anonymous() {
			continue
		}
		total += mp.Size()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", vm.FormatAddr(mp.Start), vm.FormatAddr(mp.End), units.BytesSize(float64(mp.Size())), mp.Perms, mp.Path)
	}
	fmt.Fprintf(w, "total\t\t%s\t\t\n", units.BytesSize(float64(total)))
	return w.Flush()
}
