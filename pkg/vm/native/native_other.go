//go:build !windows && (!linux || s390x)

package native

import (
	"errors"
	"runtime"

	"github.com/vmdriver/vmdriver/pkg/vm"
)

// ErrUnsupported is returned by New on systems without a native backend.
var ErrUnsupported = errors.New("native backend not available on " + runtime.GOOS + "/" + runtime.GOARCH + ", use --backend=sim")

// Platform is not available on this system.
type Platform struct {
	vm.Platform
}

// New always fails with ErrUnsupported.
func New(granularity int) (*Platform, error) {
	return nil, ErrUnsupported
}

// Close does nothing.
func (p *Platform) Close() error {
	return nil
}
