package preview1

import (
	"context"
	"errors"
	"io"

	"github.com/wippyai/wasm-runner/layout"
	"github.com/wippyai/wasm-runner/memory"
	"github.com/wippyai/wasm-runner/resource"
	"github.com/wippyai/wasm-runner/wasi"
)

func (w *WASI) fdClose(_ context.Context, _ *memory.Guest, params []uint64) wasi.Errno {
	if _, ok := w.fds.Remove(resource.Handle(uint32(params[0]))); !ok {
		return wasi.EBADF
	}
	return wasi.ESUCCESS
}

func (w *WASI) fdFdstatGet(_ context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	v, kind, errno := w.lookup(uint32(params[0]))
	if errno != wasi.ESUCCESS {
		return errno
	}

	filetype := wasi.FiletypeCharacterDevice
	var flags uint64
	switch kind {
	case resource.KindDir:
		filetype = wasi.FiletypeDirectory
	case resource.KindFile:
		filetype = wasi.FiletypeRegularFile
		if v.(*file).append {
			flags = uint64(wasi.FdflagAppend)
		}
	}

	rec := layout.Record{
		"filetype":          uint64(filetype),
		"flags":             flags,
		"rights_base":       wasi.RightsAll,
		"rights_inheriting": wasi.RightsAll,
	}
	if g.WriteRecord(uint32(params[1]), wasi.Fdstat, rec) != nil {
		return wasi.EFAULT
	}
	return wasi.ESUCCESS
}

func (w *WASI) fdFilestatGet(_ context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	v, kind, errno := w.lookup(uint32(params[0]))
	if errno != wasi.ESUCCESS {
		return errno
	}

	var st wasi.Filestat
	var err error
	switch kind {
	case resource.KindFile:
		st, err = statFile(v.(*file).f)
	case resource.KindDir:
		st, err = statPath(v.(*dir).host, true)
	default:
		st = wasi.Filestat{Filetype: wasi.FiletypeCharacterDevice}
	}
	if err != nil {
		return errnoOf(err)
	}
	return writeFilestat(g, uint32(params[1]), st)
}

func writeFilestat(g *memory.Guest, buf uint32, st wasi.Filestat) wasi.Errno {
	if g.WriteRecord(buf, wasi.StableFilestat, st.Record()) != nil {
		return wasi.EFAULT
	}
	return wasi.ESUCCESS
}

func (w *WASI) fdPrestatGet(_ context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	d, errno := w.preopen(uint32(params[0]))
	if errno != wasi.ESUCCESS {
		return errno
	}
	rec := layout.Record{"tag": uint64(0), "name_len": uint64(len(d.guest))}
	if g.WriteRecord(uint32(params[1]), wasi.Prestat, rec) != nil {
		return wasi.EFAULT
	}
	return wasi.ESUCCESS
}

func (w *WASI) fdPrestatDirName(_ context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	d, errno := w.preopen(uint32(params[0]))
	if errno != wasi.ESUCCESS {
		return errno
	}
	if uint32(params[2]) < uint32(len(d.guest)) {
		return wasi.ENAMETOOLONG
	}
	if g.Write(uint32(params[1]), []byte(d.guest)) != nil {
		return wasi.EFAULT
	}
	return wasi.ESUCCESS
}

func (w *WASI) preopen(fd uint32) (*dir, wasi.Errno) {
	v, ok := w.fds.GetTyped(resource.Handle(fd), resource.KindDir)
	if !ok || !v.(*dir).preopen {
		return nil, wasi.EBADF
	}
	return v.(*dir), wasi.ESUCCESS
}

// iovecs returns views of the guest buffers described by the iovec array.
func iovecs(g *memory.Guest, ptr, count uint32) ([][]byte, wasi.Errno) {
	views := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		rec, err := g.ReadRecord(ptr+i*wasi.IOVec.Size(), wasi.IOVec)
		if err != nil {
			return nil, wasi.EFAULT
		}
		view, err := g.Read(uint32(rec["buf"].(uint64)), uint32(rec["len"].(uint64)))
		if err != nil {
			return nil, wasi.EFAULT
		}
		views = append(views, view)
	}
	return views, wasi.ESUCCESS
}

func (w *WASI) fdRead(_ context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	v, kind, errno := w.lookup(uint32(params[0]))
	if errno != wasi.ESUCCESS {
		return errno
	}
	var r io.Reader
	switch kind {
	case resource.KindStdio:
		r = v.(*stdio).r
	case resource.KindFile:
		r = v.(*file).f
	default:
		return wasi.EISDIR
	}
	if r == nil {
		return wasi.EBADF
	}

	views, errno := iovecs(g, uint32(params[1]), uint32(params[2]))
	if errno != wasi.ESUCCESS {
		return errno
	}
	var total uint32
	for _, view := range views {
		n, err := r.Read(view)
		total += uint32(n)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return errnoOf(err)
			}
			break
		}
		if n < len(view) {
			break
		}
	}
	if g.WriteU32(uint32(params[3]), total) != nil {
		return wasi.EFAULT
	}
	return wasi.ESUCCESS
}

func (w *WASI) fdWrite(_ context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	v, kind, errno := w.lookup(uint32(params[0]))
	if errno != wasi.ESUCCESS {
		return errno
	}
	var wr io.Writer
	switch kind {
	case resource.KindStdio:
		wr = v.(*stdio).w
	case resource.KindFile:
		wr = v.(*file).f
	default:
		return wasi.EISDIR
	}
	if wr == nil {
		return wasi.EBADF
	}

	views, errno := iovecs(g, uint32(params[1]), uint32(params[2]))
	if errno != wasi.ESUCCESS {
		return errno
	}
	var total uint32
	for _, view := range views {
		n, err := wr.Write(view)
		total += uint32(n)
		if err != nil {
			return errnoOf(err)
		}
	}
	if g.WriteU32(uint32(params[3]), total) != nil {
		return wasi.EFAULT
	}
	return wasi.ESUCCESS
}

func (w *WASI) fdSeek(_ context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	v, kind, errno := w.lookup(uint32(params[0]))
	if errno != wasi.ESUCCESS {
		return errno
	}
	switch kind {
	case resource.KindStdio:
		return wasi.ESPIPE
	case resource.KindDir:
		return wasi.EISDIR
	}

	var whence int
	switch uint32(params[2]) {
	case wasi.WhenceSet:
		whence = io.SeekStart
	case wasi.WhenceCur:
		whence = io.SeekCurrent
	case wasi.WhenceEnd:
		whence = io.SeekEnd
	default:
		return wasi.EINVAL
	}

	pos, err := v.(*file).f.Seek(int64(params[1]), whence)
	if err != nil {
		return errnoOf(err)
	}
	if g.WriteU64(uint32(params[3]), uint64(pos)) != nil {
		return wasi.EFAULT
	}
	return wasi.ESUCCESS
}

func (w *WASI) fdTell(ctx context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	return w.fdSeek(ctx, g, []uint64{params[0], 0, uint64(wasi.WhenceCur), params[1]})
}
