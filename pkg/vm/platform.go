package vm

//go:generate mockgen -destination mock_platform_test.go -package vm -self_package github.com/vmdriver/vmdriver/pkg/vm -write_package_comment=false github.com/vmdriver/vmdriver/pkg/vm Platform

// WholeRegion is passed as the size of a Release to free the entire
// reservation starting at the given address.
const WholeRegion uintptr = 0

// Platform is the address space an Executor operates on. Implementations
// enforce the legality of region transitions and report illegal ones as
// errors.
type Platform interface {
	// Reserve claims size bytes of address space at addr without backing
	// storage. If addr is zero the platform picks the address. It returns
	// the base of the reservation.
	Reserve(addr, size uintptr, prot Protection) (uintptr, error)
	// Commit backs the pages of a previously reserved range with storage.
	Commit(addr, size uintptr, prot Protection) (uintptr, error)
	// Touch reads one word at addr, forcing the page in.
	Touch(addr uintptr) error
	// Lock pins committed pages in physical memory.
	Lock(addr, size uintptr) error
	// Unlock reverses Lock.
	Unlock(addr, size uintptr) error
	// Guard reserves and commits size bytes with every page guarded: the
	// first access to a guarded page fails once and clears the guard.
	Guard(addr, size uintptr, prot Protection) (uintptr, error)
	// Decommit drops the storage of committed pages, keeping the reservation.
	Decommit(addr, size uintptr) error
	// Release frees the reservation starting at addr. Size must be
	// WholeRegion.
	Release(addr, size uintptr) error
	// PageSize returns the platform page size in bytes.
	PageSize() int
}
