//go:build linux && !s390x

package native

import (
	"runtime/debug"
	"unsafe"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/vmdriver/vmdriver/pkg/logflags"
	"github.com/vmdriver/vmdriver/pkg/vm"
)

// ErrGuardPageViolation is returned by Touch the first time a guarded page
// is accessed.
var ErrGuardPageViolation = errors.New("guard page violation")

// Platform operates on the address space of the current process.
//
// Linux has no notion of reserved but uncommitted memory, so reservations
// are PROT_NONE mappings created with MAP_NORESERVE and committing a page
// changes its protection. Guard pages are PROT_NONE pages whose requested
// protection is restored on first touch.
type Platform struct {
	granularity uintptr
	table       regionTable
	log         logflags.Logger
}

// New returns the native platform of the running process.
func New(granularity int) (*Platform, error) {
	if granularity <= 0 {
		granularity = vm.DefaultReserveUnit
	}
	pageSize := uintptr(unix.Getpagesize())
	if uintptr(granularity) < pageSize {
		granularity = int(pageSize)
	}
	return &Platform{
		granularity: uintptr(granularity),
		table:       regionTable{pageSize: pageSize},
		log:         logflags.PlatformLogger().WithField("backend", "native"),
	}, nil
}

// PageSize returns the system page size.
func (p *Platform) PageSize() int {
	return int(p.table.pageSize)
}

func protFlags(prot vm.Protection) int {
	var flags int
	if prot.Readable() {
		flags |= unix.PROT_READ
	}
	if prot.Writable() {
		flags |= unix.PROT_WRITE
	}
	if prot.Executable() {
		flags |= unix.PROT_EXEC
	}
	return flags
}

func mprotect(addr, length uintptr, prot int) error {
	_, _, errno := unix.Syscall(unix.SYS_MPROTECT, addr, length, uintptr(prot))
	if errno != 0 {
		return errno
	}
	return nil
}

func madvise(addr, length uintptr, advice int) error {
	_, _, errno := unix.Syscall(unix.SYS_MADVISE, addr, length, uintptr(advice))
	if errno != 0 {
		return errno
	}
	return nil
}

func mlock(addr, length uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_MLOCK, addr, length, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func munlock(addr, length uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_MUNLOCK, addr, length, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func munmap(addr, length uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_MUNMAP, addr, length, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// reserve maps an inaccessible region of size bytes at addr, rounded down
// to the allocation granularity, or wherever the kernel chooses if addr is
// zero.
func (p *Platform) reserve(addr, size uintptr) (*region, error) {
	if size == 0 {
		return nil, unix.EINVAL
	}
	hint := roundDown(addr, p.granularity)
	end := roundUp(addr+size, p.table.pageSize)
	if addr == 0 {
		end = roundUp(size, p.table.pageSize)
	}
	if end <= hint {
		return nil, unix.EINVAL
	}
	length := end - hint
	flags := unix.MAP_PRIVATE | unix.MAP_ANONYMOUS | unix.MAP_NORESERVE
	if addr != 0 {
		flags |= unix.MAP_FIXED_NOREPLACE
	}
	base, err := mmap(hint, length, unix.PROT_NONE, flags)
	if err != nil {
		return nil, err
	}
	if addr != 0 && base != hint {
		// Kernels before 4.17 treat MAP_FIXED_NOREPLACE as a hint.
		munmap(base, length)
		return nil, unix.EEXIST
	}
	p.log.Debugf("mmap %#x-%#x", base, base+length)
	return p.table.insert(base, length), nil
}

// Reserve implements vm.Platform.
func (p *Platform) Reserve(addr, size uintptr, prot vm.Protection) (uintptr, error) {
	r, err := p.reserve(addr, size)
	if err != nil {
		return 0, errors.Wrap(err, "mmap")
	}
	return r.base, nil
}

func (p *Platform) commit(r *region, first, last int, prot vm.Protection) error {
	start := r.base + uintptr(first)*p.table.pageSize
	length := uintptr(last-first) * p.table.pageSize
	if err := mprotect(start, length, protFlags(prot)); err != nil {
		return errors.Wrap(err, "mprotect")
	}
	for i := first; i < last; i++ {
		r.state[i] = r.state[i]&^pageGuard | pageCommitted
		r.prot[i] = prot
	}
	return nil
}

// Commit implements vm.Platform. The range must lie inside a single
// reservation; committing at address zero reserves a new one.
func (p *Platform) Commit(addr, size uintptr, prot vm.Protection) (uintptr, error) {
	if addr == 0 {
		r, err := p.reserve(0, size)
		if err != nil {
			return 0, errors.Wrap(err, "mmap")
		}
		if err := p.commit(r, 0, len(r.state), prot); err != nil {
			munmap(r.base, r.size)
			p.table.remove(r)
			return 0, err
		}
		return r.base, nil
	}
	start, end := p.table.pageRange(addr, size)
	r, first, last, ok := p.table.span(start, end)
	if !ok {
		return 0, errors.Wrapf(unix.ENOMEM, "%#x-%#x is not reserved", start, end)
	}
	if err := p.commit(r, first, last, prot); err != nil {
		return 0, err
	}
	return start, nil
}

var sink uint32

// read loads one word from addr, converting a memory fault into an error.
func read(addr uintptr) (err error) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(unix.EFAULT, "fault reading %#x", addr)
		}
	}()
	sink = *(*uint32)(unsafe.Pointer(addr))
	return nil
}

// Touch implements vm.Platform.
func (p *Platform) Touch(addr uintptr) error {
	if r := p.table.find(addr); r != nil {
		i := int((addr - r.base) / p.table.pageSize)
		if r.state[i]&pageGuard != 0 {
			page := r.base + uintptr(i)*p.table.pageSize
			if err := mprotect(page, p.table.pageSize, protFlags(r.prot[i])); err != nil {
				return errors.Wrap(err, "mprotect")
			}
			r.state[i] &^= pageGuard
			p.log.Debugf("guard page %#x hit", page)
			return errors.Wrapf(ErrGuardPageViolation, "%#x", addr)
		}
	}
	return read(addr)
}

// Lock implements vm.Platform. Every page must be committed and
// accessible.
func (p *Platform) Lock(addr, size uintptr) error {
	start, end := p.table.pageRange(addr, size)
	r, first, last, ok := p.table.span(start, end)
	if !ok {
		return errors.Wrapf(unix.ENOMEM, "%#x-%#x is not reserved", start, end)
	}
	for i := first; i < last; i++ {
		if r.state[i]&pageCommitted == 0 || r.state[i]&pageGuard != 0 || r.prot[i] == vm.NoAccess {
			return errors.Wrapf(unix.EFAULT, "page %#x is not accessible", r.base+uintptr(i)*p.table.pageSize)
		}
	}
	if err := mlock(start, end-start); err != nil {
		return errors.Wrap(err, "mlock")
	}
	for i := first; i < last; i++ {
		r.state[i] |= pageLocked
	}
	return nil
}

// Unlock implements vm.Platform. Every page must be locked.
func (p *Platform) Unlock(addr, size uintptr) error {
	start, end := p.table.pageRange(addr, size)
	r, first, last, ok := p.table.span(start, end)
	if !ok {
		return errors.Wrapf(unix.ENOMEM, "%#x-%#x is not reserved", start, end)
	}
	for i := first; i < last; i++ {
		if r.state[i]&pageLocked == 0 {
			return errors.Wrapf(unix.EINVAL, "page %#x is not locked", r.base+uintptr(i)*p.table.pageSize)
		}
	}
	if err := munlock(start, end-start); err != nil {
		return errors.Wrap(err, "munlock")
	}
	for i := first; i < last; i++ {
		r.state[i] &^= pageLocked
	}
	return nil
}

// Guard implements vm.Platform.
func (p *Platform) Guard(addr, size uintptr, prot vm.Protection) (uintptr, error) {
	if prot == vm.NoAccess {
		return 0, unix.EINVAL
	}
	r, err := p.reserve(addr, size)
	if err != nil {
		return 0, errors.Wrap(err, "mmap")
	}
	for i := range r.state {
		r.state[i] = pageCommitted | pageGuard
		r.prot[i] = prot
	}
	return r.base, nil
}

// Decommit implements vm.Platform. A zero size at the base of a
// reservation decommits all of it.
func (p *Platform) Decommit(addr, size uintptr) error {
	if size == 0 {
		if r := p.table.find(addr); r != nil && r.base == addr {
			size = r.size
		}
	}
	start, end := p.table.pageRange(addr, size)
	r, first, last, ok := p.table.span(start, end)
	if !ok {
		return errors.Wrapf(unix.ENOMEM, "%#x-%#x is not reserved", start, end)
	}
	for i := first; i < last; i++ {
		if r.state[i]&pageLocked != 0 {
			if err := munlock(start, end-start); err != nil {
				return errors.Wrap(err, "munlock")
			}
			break
		}
	}
	if err := madvise(start, end-start, unix.MADV_DONTNEED); err != nil {
		return errors.Wrap(err, "madvise")
	}
	if err := mprotect(start, end-start, unix.PROT_NONE); err != nil {
		return errors.Wrap(err, "mprotect")
	}
	for i := first; i < last; i++ {
		r.state[i] = 0
		r.prot[i] = 0
	}
	return nil
}

// Release implements vm.Platform. addr must be the base of a reservation
// and size must be vm.WholeRegion.
func (p *Platform) Release(addr, size uintptr) error {
	if size != vm.WholeRegion {
		return errors.Wrap(unix.EINVAL, "size must be zero")
	}
	r := p.table.find(addr)
	if r == nil || r.base != addr {
		return errors.Wrapf(unix.EINVAL, "%#x is not the base of a reservation", addr)
	}
	if err := munmap(r.base, r.size); err != nil {
		return errors.Wrap(err, "munmap")
	}
	p.table.remove(r)
	p.log.Debugf("munmap %#x-%#x", r.base, r.end())
	return nil
}

// Close unmaps every reservation still held by the platform.
func (p *Platform) Close() error {
	var result *multierror.Error
	for _, r := range p.table.regions {
		if err := munmap(r.base, r.size); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "munmap %#x", r.base))
		}
	}
	p.table.regions = nil
	return result.ErrorOrNil()
}
