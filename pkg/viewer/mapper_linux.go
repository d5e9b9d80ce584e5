package viewer

import (
	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
)

// Maps reads the memory map of pid.
func (m *Mapper) Maps(pid int) ([]Mapping, error) {
	root := m.Root
	if root == "" {
		root = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(root)
	if err != nil {
		return nil, errors.Wrap(err, "opening proc filesystem")
	}
	p, err := fs.Proc(pid)
	if err != nil {
		return nil, errors.Wrapf(err, "process %d", pid)
	}
	pms, err := p.ProcMaps()
	if err != nil {
		return nil, errors.Wrapf(err, "reading memory map of process %d", pid)
	}
	maps := make([]Mapping, 0, len(pms))
	for _, pm := range pms {
		maps = append(maps, Mapping{
			Start: pm.StartAddr,
			End:   pm.EndAddr,
			Perms: perms(pm.Perms),
			Path:  pm.Pathname,
		})
	}
	return maps, nil
}

func perms(p *procfs.ProcMapPermissions) string {
	b := []byte("---p")
	if p == nil {
		return string(b)
	}
	if p.Read {
		b[0] = 'r'
	}
	if p.Write {
		b[1] = 'w'
	}
	if p.Execute {
		b[2] = 'x'
	}
	if p.Shared {
		b[3] = 's'
	}
	return string(b)
}
