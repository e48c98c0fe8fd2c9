package preview1

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-runner/memory"
	"github.com/wippyai/wasm-runner/resource"
	"github.com/wippyai/wasm-runner/wasi"
)

// pathAt resolves the guest path at (ptr, n) against directory fd.
func (w *WASI) pathAt(g *memory.Guest, fd, ptr, n uint32) (string, wasi.Errno) {
	d, errno := w.lookupDir(fd)
	if errno != wasi.ESUCCESS {
		return "", errno
	}
	path, err := g.ReadString(ptr, n)
	if err != nil {
		return "", wasi.EFAULT
	}
	host, errno := d.resolve(path)
	if errno != wasi.ESUCCESS {
		Logger().Debug("path refused", zap.String("path", path), zap.Stringer("errno", errno))
	}
	return host, errno
}

// path_filestat_get(fd, flags, path, path_len, buf)
func (w *WASI) pathFilestatGet(_ context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	host, errno := w.pathAt(g, uint32(params[0]), uint32(params[2]), uint32(params[3]))
	if errno != wasi.ESUCCESS {
		return errno
	}
	follow := uint32(params[1])&wasi.LookupSymlinkFollow != 0
	st, err := statPath(host, follow)
	if err != nil {
		return errnoOf(err)
	}
	return writeFilestat(g, uint32(params[4]), st)
}

// path_open(fd, dirflags, path, path_len, oflags, rights_base,
// rights_inheriting, fdflags, fd_ptr)
func (w *WASI) pathOpen(_ context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	host, errno := w.pathAt(g, uint32(params[0]), uint32(params[2]), uint32(params[3]))
	if errno != wasi.ESUCCESS {
		return errno
	}
	oflags := uint32(params[4])
	rights := params[5]
	fdflags := uint32(params[7])
	resultPtr := uint32(params[8])

	if oflags&wasi.OflagDirectory != 0 {
		info, err := os.Stat(host)
		if err != nil {
			return errnoOf(err)
		}
		if !info.IsDir() {
			return wasi.ENOTDIR
		}
		return w.storeFd(g, resultPtr, resource.KindDir, &dir{host: host})
	}

	flag := openMode(rights, oflags)
	if oflags&wasi.OflagCreat != 0 {
		flag |= os.O_CREATE
	}
	if oflags&wasi.OflagExcl != 0 {
		flag |= os.O_EXCL
	}
	if oflags&wasi.OflagTrunc != 0 {
		flag |= os.O_TRUNC
	}
	appendMode := fdflags&wasi.FdflagAppend != 0
	if appendMode {
		flag |= os.O_APPEND
	}

	f, err := os.OpenFile(host, flag, 0o644)
	if err != nil {
		return errnoOf(err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return errnoOf(err)
	}
	if info.IsDir() {
		_ = f.Close()
		return w.storeFd(g, resultPtr, resource.KindDir, &dir{host: host})
	}
	return w.storeFd(g, resultPtr, resource.KindFile, &file{f: f, append: appendMode})
}

// openMode picks the access mode from the requested rights. Creating or
// truncating implies write access.
func openMode(rights uint64, oflags uint32) int {
	read := rights&wasi.RightFdRead != 0
	write := rights&wasi.RightFdWrite != 0 || oflags&(wasi.OflagCreat|wasi.OflagTrunc) != 0
	switch {
	case read && write:
		return os.O_RDWR
	case write:
		return os.O_WRONLY
	default:
		return os.O_RDONLY
	}
}

func (w *WASI) storeFd(g *memory.Guest, ptr uint32, kind resource.Kind, v any) wasi.Errno {
	fd := w.fds.Insert(kind, v)
	if g.WriteU32(ptr, uint32(fd)) != nil {
		w.fds.Remove(fd)
		return wasi.EFAULT
	}
	return wasi.ESUCCESS
}
