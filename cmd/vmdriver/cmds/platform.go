package cmds

import (
	"fmt"

	"github.com/vmdriver/vmdriver/pkg/vm"
	"github.com/vmdriver/vmdriver/pkg/vm/native"
	"github.com/vmdriver/vmdriver/pkg/vm/sim"
)

// platform is a vm.Platform that holds resources until closed.
type platform interface {
	vm.Platform
	Close() error
}

func newPlatform(name string, granularity int) (platform, error) {
	switch name {
	case "native":
		p, err := native.New(granularity)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "sim":
		return sim.New(pageSize, granularity), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}
