//go:build linux && !s390x && !386 && !arm && !mips && !mipsle

package native

import "golang.org/x/sys/unix"

func mmap(addr, length uintptr, prot, flags int) (uintptr, error) {
	r, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, length, uintptr(prot), uintptr(flags), ^uintptr(0), 0)
	if errno != 0 {
		return 0, errno
	}
	return r, nil
}
