//go:build linux

package preview1

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/wippyai/wasm-runner/wasi"
)

func statPath(path string, follow bool) (wasi.Filestat, error) {
	var st unix.Stat_t
	var err error
	if follow {
		err = unix.Stat(path, &st)
	} else {
		err = unix.Lstat(path, &st)
	}
	if err != nil {
		return wasi.Filestat{}, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	return fromStat(&st), nil
}

func statFile(f *os.File) (wasi.Filestat, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return wasi.Filestat{}, &os.PathError{Op: "fstat", Path: f.Name(), Err: err}
	}
	return fromStat(&st), nil
}

func fromStat(st *unix.Stat_t) wasi.Filestat {
	return wasi.Filestat{
		Dev:      uint64(st.Dev),
		Ino:      st.Ino,
		Filetype: filetypeOf(st.Mode),
		Nlink:    uint64(st.Nlink),
		Size:     uint64(st.Size),
		Atim:     uint64(st.Atim.Nano()),
		Mtim:     uint64(st.Mtim.Nano()),
		Ctim:     uint64(st.Ctim.Nano()),
	}
}

func filetypeOf(mode uint32) wasi.Filetype {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		return wasi.FiletypeRegularFile
	case unix.S_IFDIR:
		return wasi.FiletypeDirectory
	case unix.S_IFLNK:
		return wasi.FiletypeSymbolicLink
	case unix.S_IFCHR:
		return wasi.FiletypeCharacterDevice
	case unix.S_IFBLK:
		return wasi.FiletypeBlockDevice
	case unix.S_IFSOCK:
		return wasi.FiletypeSocketStream
	default:
		return wasi.FiletypeUnknown
	}
}
