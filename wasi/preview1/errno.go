package preview1

import (
	"errors"
	"os"
	"syscall"

	"github.com/wippyai/wasm-runner/wasi"
)

func errnoOf(err error) wasi.Errno {
	if err == nil {
		return wasi.ESUCCESS
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return mapErrno(errno)
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		return wasi.ENOENT
	case errors.Is(err, os.ErrPermission):
		return wasi.EACCES
	case errors.Is(err, os.ErrExist):
		return wasi.EEXIST
	case errors.Is(err, os.ErrClosed):
		return wasi.EBADF
	}
	return wasi.EIO
}

func mapErrno(errno syscall.Errno) wasi.Errno {
	switch errno {
	case syscall.EACCES:
		return wasi.EACCES
	case syscall.EPERM:
		return wasi.EPERM
	case syscall.ENOENT:
		return wasi.ENOENT
	case syscall.EEXIST:
		return wasi.EEXIST
	case syscall.ENOTDIR:
		return wasi.ENOTDIR
	case syscall.EISDIR:
		return wasi.EISDIR
	case syscall.ENOTEMPTY:
		return wasi.ENOTEMPTY
	case syscall.ENAMETOOLONG:
		return wasi.ENAMETOOLONG
	case syscall.ENOSPC:
		return wasi.ENOSPC
	case syscall.EROFS:
		return wasi.EROFS
	case syscall.EXDEV:
		return wasi.EXDEV
	case syscall.ELOOP:
		return wasi.ELOOP
	case syscall.EBUSY:
		return wasi.EBUSY
	case syscall.EINVAL:
		return wasi.EINVAL
	case syscall.ESPIPE:
		return wasi.ESPIPE
	case syscall.EBADF:
		return wasi.EBADF
	case syscall.EAGAIN:
		return wasi.EAGAIN
	default:
		return wasi.EIO
	}
}
