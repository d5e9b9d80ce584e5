package terminal

import (
	"fmt"

	"github.com/docker/go-units"

	"github.com/vmdriver/vmdriver/pkg/vm"
)

// Summary accumulates the results of a run.
type Summary struct {
	Processed int
	Outcomes  map[vm.Outcome]int

	// Reserved is the number of bytes reserved by successful Reserve and
	// Guard commands, Committed the number committed by Commit and Guard.
	Reserved  uint64
	Committed uint64
	Released  int
}

// Add records res.
func (s *Summary) Add(res vm.OperationResult) {
	s.Processed++
	if s.Outcomes == nil {
		s.Outcomes = make(map[vm.Outcome]int)
	}
	s.Outcomes[res.Outcome()]++
	if !res.Succeeded() {
		return
	}
	switch res.Command.Op {
	case vm.OpReserve:
		s.Reserved += uint64(res.Size)
	case vm.OpCommit:
		s.Committed += uint64(res.Size)
	case vm.OpGuard:
		s.Reserved += uint64(res.Size)
		s.Committed += uint64(res.Size)
	case vm.OpRelease:
		s.Released++
	}
}

// Failed returns the number of commands that did not succeed.
func (s *Summary) Failed() int {
	return s.Processed - s.Outcomes[vm.Succeeded]
}

// Print writes the summary to the terminal.
func (s *Summary) Print(t *Term) {
	w := t.stdout
	ok := t.colorize(ansiGreen, fmt.Sprintf("%d succeeded", s.Outcomes[vm.Succeeded]))
	failed := fmt.Sprintf("%d failed", s.Failed())
	if s.Failed() > 0 {
		failed = t.colorize(ansiRed, failed)
	}
	fmt.Fprintf(w, "%d commands processed: %s, %s\n", s.Processed, ok, failed)
	for _, o := range vm.Outcomes() {
		if o == vm.Succeeded || s.Outcomes[o] == 0 {
			continue
		}
		fmt.Fprintf(w, "    %s\t%d\n", t.colorize(ansiYellow, o.String()), s.Outcomes[o])
	}
	fmt.Fprintf(w, "Reserved %s, committed %s, released %d regions\n",
		units.BytesSize(float64(s.Reserved)), units.BytesSize(float64(s.Committed)), s.Released)
}
