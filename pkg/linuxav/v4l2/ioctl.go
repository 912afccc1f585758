//go:build linux && (amd64 || arm64)

package v4l2

import (
	"syscall"
	"unsafe"
)

// ioctl issues a request, retrying when interrupted by a signal.
func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	for {
		_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
		switch errno {
		case 0:
			return nil
		case syscall.EINTR:
			continue
		default:
			return errno
		}
	}
}

func open(path string) (int, error) {
	return syscall.Open(path, syscall.O_RDWR|syscall.O_NONBLOCK|syscall.O_CLOEXEC, 0)
}

func close(fd int) error {
	return syscall.Close(fd)
}

// waitReadable blocks until fd is readable or timeoutMs elapses. A negative
// timeout waits forever. It reports false on timeout.
func waitReadable(fd int, timeoutMs int) (bool, error) {
	for {
		var readFds syscall.FdSet
		readFds.Bits[fd/64] |= 1 << (uint(fd) % 64)

		var tv *syscall.Timeval
		if timeoutMs >= 0 {
			tv = &syscall.Timeval{
				Sec:  int64(timeoutMs / 1000),
				Usec: int64((timeoutMs % 1000) * 1000),
			}
		}

		n, err := syscall.Select(fd+1, &readFds, nil, nil, tv)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
}
