//go:build !linux

package viewer

import (
	"runtime"

	"github.com/pkg/errors"
)

// Maps reads the memory map of pid.
func (m *Mapper) Maps(pid int) ([]Mapping, error) {
	return nil, errors.Errorf("memory maps are not available on %s", runtime.GOOS)
}
