// Package sim implements vm.Platform on a simulated address space that
// tracks the state of every page explicitly. It enforces the same
// transition rules as the Windows memory manager, so scripts can be
// exercised on any OS and in tests.
package sim

import (
	"sort"

	"github.com/vmdriver/vmdriver/pkg/logflags"
	"github.com/vmdriver/vmdriver/pkg/vm"
)

// DefaultBase is where the address space starts placing reservations
// when the caller does not choose an address.
const DefaultBase uintptr = 0x10000000

// MaxRegionSize is the largest reservation the address space accepts.
const MaxRegionSize uintptr = 1 << 30

// PageState is the state of one simulated page.
type PageState struct {
	Committed  bool
	Protection vm.Protection
	Guard      bool
	Locked     bool
}

type region struct {
	base  uintptr
	pages []PageState
}

func (r *region) end(pageSize uintptr) uintptr {
	return r.base + uintptr(len(r.pages))*pageSize
}

// Region describes one reservation.
type Region struct {
	Base      uintptr
	Size      uintptr
	Committed int
	Guarded   int
	Locked    int
}

// AddressSpace is a simulated vm.Platform.
type AddressSpace struct {
	pageSize    uintptr
	granularity uintptr
	next        uintptr
	regions     []*region // sorted by base
	log         logflags.Logger
}

// New returns an empty address space with the given page size and
// allocation granularity.
func New(pageSize, granularity int) *AddressSpace {
	if pageSize <= 0 {
		pageSize = vm.DefaultPageSize
	}
	if granularity <= 0 {
		granularity = vm.DefaultReserveUnit
	}
	return &AddressSpace{
		pageSize:    uintptr(pageSize),
		granularity: uintptr(granularity),
		next:        DefaultBase,
		log:         logflags.PlatformLogger().WithField("backend", "sim"),
	}
}

// PageSize returns the simulated page size.
func (as *AddressSpace) PageSize() int {
	return int(as.pageSize)
}

func roundDown(x, align uintptr) uintptr {
	return x &^ (align - 1)
}

func roundUp(x, align uintptr) uintptr {
	return (x + align - 1) &^ (align - 1)
}

// pageRange returns the page aligned range covering [addr, addr+size).
func (as *AddressSpace) pageRange(addr, size uintptr) (uintptr, uintptr) {
	return roundDown(addr, as.pageSize), roundUp(addr+size, as.pageSize)
}

func (as *AddressSpace) find(addr uintptr) *region {
	i := sort.Search(len(as.regions), func(i int) bool {
		return as.regions[i].end(as.pageSize) > addr
	})
	if i < len(as.regions) && as.regions[i].base <= addr {
		return as.regions[i]
	}
	return nil
}

// pages returns the region containing [start, end) and the index of its
// first page. The whole range must be inside a single region.
func (as *AddressSpace) pages(start, end uintptr) (*region, int, int, error) {
	r := as.find(start)
	if r == nil || end > r.end(as.pageSize) || end <= start {
		return nil, 0, 0, ErrInvalidAddress
	}
	first := int((start - r.base) / as.pageSize)
	last := int((end - r.base) / as.pageSize)
	return r, first, last, nil
}

func (as *AddressSpace) overlaps(start, end uintptr) bool {
	for _, r := range as.regions {
		if start < r.end(as.pageSize) && r.base < end {
			return true
		}
	}
	return false
}

// reserve inserts a new region covering size bytes at addr, or at the next
// free granularity aligned address if addr is zero.
func (as *AddressSpace) reserve(addr, size uintptr) (*region, error) {
	if size == 0 {
		return nil, ErrInvalidParameter
	}
	var start uintptr
	if addr != 0 {
		start = roundDown(addr, as.granularity)
		if as.overlaps(start, roundUp(addr+size, as.pageSize)) {
			return nil, ErrInvalidAddress
		}
	} else {
		start = as.next
		for as.overlaps(start, start+roundUp(size, as.pageSize)) {
			start += as.granularity
		}
	}
	end := roundUp(addr+size, as.pageSize)
	if addr == 0 {
		end = start + roundUp(size, as.pageSize)
	}
	if end <= start {
		return nil, ErrInvalidParameter
	}
	if end-start > MaxRegionSize {
		return nil, ErrNotEnoughMemory
	}
	if addr == 0 {
		as.next = roundUp(end, as.granularity)
	}
	r := &region{base: start, pages: make([]PageState, (end-start)/as.pageSize)}
	i := sort.Search(len(as.regions), func(i int) bool { return as.regions[i].base > start })
	as.regions = append(as.regions, nil)
	copy(as.regions[i+1:], as.regions[i:])
	as.regions[i] = r
	return r, nil
}

// Reserve implements vm.Platform.
func (as *AddressSpace) Reserve(addr, size uintptr, prot vm.Protection) (uintptr, error) {
	r, err := as.reserve(addr, size)
	if err != nil {
		return 0, err
	}
	as.log.Debugf("reserve %#x-%#x", r.base, r.end(as.pageSize))
	return r.base, nil
}

// Commit implements vm.Platform. Committing at address zero reserves and
// commits a new region.
func (as *AddressSpace) Commit(addr, size uintptr, prot vm.Protection) (uintptr, error) {
	if addr == 0 {
		r, err := as.reserve(0, size)
		if err != nil {
			return 0, err
		}
		for i := range r.pages {
			r.pages[i] = PageState{Committed: true, Protection: prot}
		}
		return r.base, nil
	}
	start, end := as.pageRange(addr, size)
	r, first, last, err := as.pages(start, end)
	if err != nil {
		return 0, err
	}
	for i := first; i < last; i++ {
		r.pages[i].Committed = true
		r.pages[i].Protection = prot
		r.pages[i].Guard = false
	}
	as.log.Debugf("commit %#x-%#x %v", start, end, prot)
	return start, nil
}

// Touch implements vm.Platform.
func (as *AddressSpace) Touch(addr uintptr) error {
	r := as.find(addr)
	if r == nil {
		return ErrAccessViolation
	}
	p := &r.pages[(addr-r.base)/as.pageSize]
	switch {
	case !p.Committed:
		return ErrAccessViolation
	case p.Guard:
		p.Guard = false
		return ErrGuardPageViolation
	case !p.Protection.Readable():
		return ErrAccessViolation
	}
	return nil
}

// Lock implements vm.Platform. Every page must be committed and
// accessible.
func (as *AddressSpace) Lock(addr, size uintptr) error {
	start, end := as.pageRange(addr, size)
	r, first, last, err := as.pages(start, end)
	if err != nil {
		return err
	}
	for i := first; i < last; i++ {
		if !r.pages[i].Committed || r.pages[i].Protection == vm.NoAccess {
			return ErrNoAccess
		}
	}
	for i := first; i < last; i++ {
		r.pages[i].Locked = true
	}
	return nil
}

// Unlock implements vm.Platform. Every page must be locked.
func (as *AddressSpace) Unlock(addr, size uintptr) error {
	start, end := as.pageRange(addr, size)
	r, first, last, err := as.pages(start, end)
	if err != nil {
		return err
	}
	for i := first; i < last; i++ {
		if !r.pages[i].Locked {
			return ErrNotLocked
		}
	}
	for i := first; i < last; i++ {
		r.pages[i].Locked = false
	}
	return nil
}

// Guard implements vm.Platform.
func (as *AddressSpace) Guard(addr, size uintptr, prot vm.Protection) (uintptr, error) {
	if prot == vm.NoAccess {
		return 0, ErrInvalidParameter
	}
	r, err := as.reserve(addr, size)
	if err != nil {
		return 0, err
	}
	for i := range r.pages {
		r.pages[i] = PageState{Committed: true, Protection: prot, Guard: true}
	}
	as.log.Debugf("guard %#x-%#x %v", r.base, r.end(as.pageSize), prot)
	return r.base, nil
}

// Decommit implements vm.Platform.
func (as *AddressSpace) Decommit(addr, size uintptr) error {
	if size == 0 {
		r := as.find(addr)
		if r == nil || r.base != addr {
			return ErrInvalidAddress
		}
		size = r.end(as.pageSize) - r.base
	}
	start, end := as.pageRange(addr, size)
	r, first, last, err := as.pages(start, end)
	if err != nil {
		return err
	}
	for i := first; i < last; i++ {
		r.pages[i] = PageState{}
	}
	return nil
}

// Release implements vm.Platform.
func (as *AddressSpace) Release(addr, size uintptr) error {
	if size != vm.WholeRegion {
		return ErrInvalidParameter
	}
	for i, r := range as.regions {
		if r.base == addr {
			as.regions = append(as.regions[:i], as.regions[i+1:]...)
			as.log.Debugf("release %#x", addr)
			return nil
		}
	}
	return ErrInvalidAddress
}

// Close releases every region.
func (as *AddressSpace) Close() error {
	as.regions = nil
	return nil
}

// State returns the state of the page containing addr and whether addr is
// reserved at all.
func (as *AddressSpace) State(addr uintptr) (PageState, bool) {
	r := as.find(addr)
	if r == nil {
		return PageState{}, false
	}
	return r.pages[(addr-r.base)/as.pageSize], true
}

// Regions returns a snapshot of every reservation in address order.
func (as *AddressSpace) Regions() []Region {
	out := make([]Region, 0, len(as.regions))
	for _, r := range as.regions {
		info := Region{Base: r.base, Size: r.end(as.pageSize) - r.base}
		for _, p := range r.pages {
			if p.Committed {
				info.Committed++
			}
			if p.Guard {
				info.Guarded++
			}
			if p.Locked {
				info.Locked++
			}
		}
		out = append(out, info)
	}
	return out
}
