//go:build linux && !s390x

package native

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/vmdriver/vmdriver/pkg/logflags"
	"github.com/vmdriver/vmdriver/pkg/vm"
)

func newPlatform(t *testing.T) *Platform {
	t.Helper()
	p, err := New(0)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, p.Close()) })
	return p
}

func TestExecutorRoundTrip(t *testing.T) {
	p := newPlatform(t)
	out := new(bytes.Buffer)
	exec := vm.NewExecutor(p, vm.Config{PageSize: p.PageSize(), Out: out, ErrOut: out, Logger: logflags.Discard()})

	res := exec.Execute(vm.Command{Op: vm.OpReserve, Units: 2, Access: 2})
	require.NoError(t, res.Err, out.String())
	base := res.Addr

	for _, cmd := range []vm.Command{
		{Op: vm.OpCommit, Addr: base, Units: 4, Access: 2},
		{Op: vm.OpTouch, Addr: base, Units: 4, Access: 2},
		{Op: vm.OpDecommit, Addr: base, Units: 4, Access: 2},
		{Op: vm.OpRelease, Addr: base, Access: 2},
	} {
		res := exec.Execute(cmd)
		require.NoError(t, res.Err, "%v\n%s", cmd, out.String())
	}
	assert.Empty(t, p.table.regions)
}

func TestTouchUncommitted(t *testing.T) {
	p := newPlatform(t)
	base, err := p.Reserve(0, uintptr(p.PageSize()), vm.ReadWrite)
	require.NoError(t, err)

	err = p.Touch(base)
	assert.True(t, errors.Is(err, unix.EFAULT), "%v", err)

	_, err = p.Commit(base, uintptr(p.PageSize()), vm.ReadOnly)
	require.NoError(t, err)
	assert.NoError(t, p.Touch(base))
}

func TestGuardIsOneShot(t *testing.T) {
	p := newPlatform(t)
	base, err := p.Guard(0, uintptr(p.PageSize()), vm.ReadWrite)
	require.NoError(t, err)

	err = p.Touch(base)
	assert.True(t, errors.Is(err, ErrGuardPageViolation), "%v", err)
	assert.NoError(t, p.Touch(base))
}

func TestGuardRejectsNoAccess(t *testing.T) {
	p := newPlatform(t)
	_, err := p.Guard(0, uintptr(p.PageSize()), vm.NoAccess)
	assert.True(t, errors.Is(err, unix.EINVAL))
	assert.Empty(t, p.table.regions)
}

func TestCommitOutsideReservation(t *testing.T) {
	p := newPlatform(t)
	base, err := p.Reserve(0, uintptr(p.PageSize()), vm.ReadWrite)
	require.NoError(t, err)

	_, err = p.Commit(base+p.granularity, uintptr(p.PageSize()), vm.ReadWrite)
	assert.True(t, errors.Is(err, unix.ENOMEM), "%v", err)
}

func TestUnlockRequiresLock(t *testing.T) {
	p := newPlatform(t)
	size := uintptr(p.PageSize())
	base, err := p.Commit(0, size, vm.ReadWrite)
	require.NoError(t, err)

	err = p.Unlock(base, size)
	assert.True(t, errors.Is(err, unix.EINVAL), "%v", err)

	if err := p.Lock(base, size); err != nil {
		// RLIMIT_MEMLOCK may be zero in containers.
		t.Skipf("mlock: %v", err)
	}
	assert.NoError(t, p.Unlock(base, size))
}

func TestLockNoAccess(t *testing.T) {
	p := newPlatform(t)
	size := uintptr(p.PageSize())
	base, err := p.Commit(0, size, vm.NoAccess)
	require.NoError(t, err)

	err = p.Lock(base, size)
	assert.True(t, errors.Is(err, unix.EFAULT), "%v", err)
}

func TestRelease(t *testing.T) {
	p := newPlatform(t)
	base, err := p.Reserve(0, 2*uintptr(p.PageSize()), vm.ReadWrite)
	require.NoError(t, err)

	assert.True(t, errors.Is(p.Release(base, uintptr(p.PageSize())), unix.EINVAL), "nonzero size")
	assert.True(t, errors.Is(p.Release(base+uintptr(p.PageSize()), 0), unix.EINVAL), "not the base")
	require.NoError(t, p.Release(base, 0))
	assert.True(t, errors.Is(p.Release(base, 0), unix.EINVAL), "already released")
}
