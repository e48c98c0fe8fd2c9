//go:build !linux

package preview1

import (
	"io/fs"
	"os"

	"github.com/wippyai/wasm-runner/wasi"
)

// Without unix stat fields, dev and ino are zero, nlink is 1 and every
// timestamp is the modification time.

func statPath(path string, follow bool) (wasi.Filestat, error) {
	var info fs.FileInfo
	var err error
	if follow {
		info, err = os.Stat(path)
	} else {
		info, err = os.Lstat(path)
	}
	if err != nil {
		return wasi.Filestat{}, err
	}
	return fromInfo(info), nil
}

func statFile(f *os.File) (wasi.Filestat, error) {
	info, err := f.Stat()
	if err != nil {
		return wasi.Filestat{}, err
	}
	return fromInfo(info), nil
}

func fromInfo(info fs.FileInfo) wasi.Filestat {
	mtim := uint64(info.ModTime().UnixNano())
	return wasi.Filestat{
		Filetype: filetypeOf(info.Mode()),
		Nlink:    1,
		Size:     uint64(info.Size()),
		Atim:     mtim,
		Mtim:     mtim,
		Ctim:     mtim,
	}
}

func filetypeOf(mode fs.FileMode) wasi.Filetype {
	switch {
	case mode.IsRegular():
		return wasi.FiletypeRegularFile
	case mode.IsDir():
		return wasi.FiletypeDirectory
	case mode&fs.ModeSymlink != 0:
		return wasi.FiletypeSymbolicLink
	case mode&fs.ModeCharDevice != 0:
		return wasi.FiletypeCharacterDevice
	case mode&fs.ModeDevice != 0:
		return wasi.FiletypeBlockDevice
	case mode&fs.ModeSocket != 0:
		return wasi.FiletypeSocketStream
	default:
		return wasi.FiletypeUnknown
	}
}
