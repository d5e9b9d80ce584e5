//go:build linux && !s390x

package native

import (
	"sort"

	"github.com/vmdriver/vmdriver/pkg/vm"
)

type pageState uint8

const (
	pageCommitted pageState = 1 << iota
	pageGuard
	pageLocked
)

// region is a reservation created by the platform. The kernel does not
// distinguish reserved from committed pages, so the platform keeps that
// state itself.
type region struct {
	base  uintptr
	size  uintptr
	state []pageState
	prot  []vm.Protection
}

func (r *region) end() uintptr {
	return r.base + r.size
}

// regionTable is the set of live reservations, sorted by base address.
type regionTable struct {
	pageSize uintptr
	regions  []*region
}

func (t *regionTable) insert(base, size uintptr) *region {
	n := int(size / t.pageSize)
	r := &region{base: base, size: size, state: make([]pageState, n), prot: make([]vm.Protection, n)}
	i := sort.Search(len(t.regions), func(i int) bool { return t.regions[i].base > base })
	t.regions = append(t.regions, nil)
	copy(t.regions[i+1:], t.regions[i:])
	t.regions[i] = r
	return r
}

func (t *regionTable) remove(r *region) {
	for i := range t.regions {
		if t.regions[i] == r {
			t.regions = append(t.regions[:i], t.regions[i+1:]...)
			return
		}
	}
}

func (t *regionTable) find(addr uintptr) *region {
	i := sort.Search(len(t.regions), func(i int) bool { return t.regions[i].end() > addr })
	if i < len(t.regions) && t.regions[i].base <= addr {
		return t.regions[i]
	}
	return nil
}

// span returns the region containing the page range [start, end) and the
// indices of its first and one-past-last pages.
func (t *regionTable) span(start, end uintptr) (*region, int, int, bool) {
	r := t.find(start)
	if r == nil || end <= start || end > r.end() {
		return nil, 0, 0, false
	}
	return r, int((start - r.base) / t.pageSize), int((end - r.base) / t.pageSize), true
}

// pageRange returns the page aligned range covering [addr, addr+size).
func (t *regionTable) pageRange(addr, size uintptr) (uintptr, uintptr) {
	return roundDown(addr, t.pageSize), roundUp(addr+size, t.pageSize)
}

func roundDown(x, align uintptr) uintptr {
	return x &^ (align - 1)
}

func roundUp(x, align uintptr) uintptr {
	return (x + align - 1) &^ (align - 1)
}
