//go:build windows

package native

import (
	"os"
	"syscall"
	"unsafe"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/vmdriver/vmdriver/pkg/logflags"
	"github.com/vmdriver/vmdriver/pkg/vm"
)

// ErrGuardPageViolation is returned by Touch the first time a guarded page
// is accessed.
var ErrGuardPageViolation error = syscall.Errno(windows.STATUS_GUARD_PAGE_VIOLATION)

// Platform operates on the address space of the current process through
// the Virtual* family of calls.
type Platform struct {
	pageSize     int
	reservations map[uintptr]bool
	log          logflags.Logger
}

// New returns the native platform of the running process. The allocation
// granularity is fixed by the system on Windows.
func New(granularity int) (*Platform, error) {
	return &Platform{
		pageSize:     os.Getpagesize(),
		reservations: make(map[uintptr]bool),
		log:          logflags.PlatformLogger().WithField("backend", "native"),
	}, nil
}

// PageSize returns the system page size.
func (p *Platform) PageSize() int {
	return p.pageSize
}

var pageProtection = map[vm.Protection]uint32{
	vm.ReadOnly:         windows.PAGE_READONLY,
	vm.ReadWrite:        windows.PAGE_READWRITE,
	vm.Execute:          windows.PAGE_EXECUTE,
	vm.ExecuteRead:      windows.PAGE_EXECUTE_READ,
	vm.ExecuteReadWrite: windows.PAGE_EXECUTE_READWRITE,
	vm.NoAccess:         windows.PAGE_NOACCESS,
}

func (p *Platform) alloc(addr, size uintptr, allocType, protect uint32) (uintptr, error) {
	base, err := windows.VirtualAlloc(addr, size, allocType, protect)
	if err != nil {
		return 0, errors.Wrap(err, "VirtualAlloc")
	}
	if allocType&windows.MEM_RESERVE != 0 {
		p.reservations[base] = true
	}
	p.log.Debugf("VirtualAlloc %#x %d %#x %#x", base, size, allocType, protect)
	return base, nil
}

// Reserve implements vm.Platform.
func (p *Platform) Reserve(addr, size uintptr, prot vm.Protection) (uintptr, error) {
	return p.alloc(addr, size, windows.MEM_RESERVE, pageProtection[prot])
}

// Commit implements vm.Platform.
func (p *Platform) Commit(addr, size uintptr, prot vm.Protection) (uintptr, error) {
	allocType := uint32(windows.MEM_COMMIT)
	if addr == 0 {
		allocType |= windows.MEM_RESERVE
	}
	return p.alloc(addr, size, allocType, pageProtection[prot])
}

// Guard implements vm.Platform.
func (p *Platform) Guard(addr, size uintptr, prot vm.Protection) (uintptr, error) {
	return p.alloc(addr, size, windows.MEM_RESERVE|windows.MEM_COMMIT, pageProtection[prot]|windows.PAGE_GUARD)
}

// Touch implements vm.Platform. The page is queried first so that a guard
// page or an inaccessible page is reported instead of raising an
// exception.
func (p *Platform) Touch(addr uintptr) error {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
		return errors.Wrap(err, "VirtualQuery")
	}
	if mbi.State != windows.MEM_COMMIT || mbi.Protect&windows.PAGE_NOACCESS != 0 {
		return errors.Wrapf(windows.ERROR_NOACCESS, "%#x", addr)
	}
	if mbi.Protect&windows.PAGE_GUARD != 0 {
		var old uint32
		page := addr &^ uintptr(p.pageSize-1)
		if err := windows.VirtualProtect(page, uintptr(p.pageSize), mbi.Protect&^windows.PAGE_GUARD, &old); err != nil {
			return errors.Wrap(err, "VirtualProtect")
		}
		return errors.Wrapf(ErrGuardPageViolation, "%#x", addr)
	}
	sink = *(*uint32)(unsafe.Pointer(addr))
	return nil
}

var sink uint32

// Lock implements vm.Platform.
func (p *Platform) Lock(addr, size uintptr) error {
	return errors.Wrap(windows.VirtualLock(addr, size), "VirtualLock")
}

// Unlock implements vm.Platform.
func (p *Platform) Unlock(addr, size uintptr) error {
	return errors.Wrap(windows.VirtualUnlock(addr, size), "VirtualUnlock")
}

// Decommit implements vm.Platform.
func (p *Platform) Decommit(addr, size uintptr) error {
	return errors.Wrap(windows.VirtualFree(addr, size, windows.MEM_DECOMMIT), "VirtualFree")
}

// Release implements vm.Platform.
func (p *Platform) Release(addr, size uintptr) error {
	if err := windows.VirtualFree(addr, size, windows.MEM_RELEASE); err != nil {
		return errors.Wrap(err, "VirtualFree")
	}
	delete(p.reservations, addr)
	return nil
}

// Close releases every reservation still held by the platform.
func (p *Platform) Close() error {
	var result *multierror.Error
	for base := range p.reservations {
		if err := windows.VirtualFree(base, 0, windows.MEM_RELEASE); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "VirtualFree %#x", base))
		}
		delete(p.reservations, base)
	}
	return result.ErrorOrNil()
}
