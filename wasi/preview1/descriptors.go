package preview1

import (
	"io"
	"os"
	"path/filepath"

	"github.com/wippyai/wasm-runner/resource"
	"github.com/wippyai/wasm-runner/wasi"
)

type stdio struct {
	r io.Reader
	w io.Writer
}

type file struct {
	f      *os.File
	append bool
}

func (f *file) Drop() {
	_ = f.f.Close()
}

type dir struct {
	host    string
	guest   string
	preopen bool
}

func (w *WASI) lookup(fd uint32) (any, resource.Kind, wasi.Errno) {
	v, kind, ok := w.fds.Get(resource.Handle(fd))
	if !ok {
		return nil, 0, wasi.EBADF
	}
	return v, kind, wasi.ESUCCESS
}

func (w *WASI) lookupDir(fd uint32) (*dir, wasi.Errno) {
	v, kind, errno := w.lookup(fd)
	if errno != wasi.ESUCCESS {
		return nil, errno
	}
	if kind != resource.KindDir {
		return nil, wasi.ENOTDIR
	}
	return v.(*dir), wasi.ESUCCESS
}

// resolve joins a guest path onto a directory descriptor. Paths that are
// absolute or climb out of the directory are refused.
func (d *dir) resolve(path string) (string, wasi.Errno) {
	if path == "" {
		return "", wasi.ENOENT
	}
	if !filepath.IsLocal(path) {
		return "", wasi.ENOTCAPABLE
	}
	return filepath.Join(d.host, path), wasi.ESUCCESS
}
