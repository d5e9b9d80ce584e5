package terminal

import (
	"fmt"
	"os"

	"github.com/docker/go-units"
	"github.com/shirou/gopsutil/process"
)

// MemoryStats is the memory usage of the process.
type MemoryStats struct {
	RSS uint64
	VMS uint64
}

func (m MemoryStats) String() string {
	return fmt.Sprintf("rss %s, vms %s", units.BytesSize(float64(m.RSS)), units.BytesSize(float64(m.VMS)))
}

func processMemory() (MemoryStats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return MemoryStats{}, err
	}
	mi, err := p.MemoryInfo()
	if err != nil {
		return MemoryStats{}, err
	}
	return MemoryStats{RSS: mi.RSS, VMS: mi.VMS}, nil
}
