package preview1

import (
	"context"
	"io"
	"time"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-runner/memory"
	"github.com/wippyai/wasm-runner/wasi"
)

func (w *WASI) argsGet(_ context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	return writeStrings(g, w.args, uint32(params[0]), uint32(params[1]))
}

func (w *WASI) argsSizesGet(_ context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	return writeSizes(g, w.args, uint32(params[0]), uint32(params[1]))
}

func (w *WASI) environGet(_ context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	return writeStrings(g, w.environ(), uint32(params[0]), uint32(params[1]))
}

func (w *WASI) environSizesGet(_ context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	return writeSizes(g, w.environ(), uint32(params[0]), uint32(params[1]))
}

// writeStrings stores NUL-terminated copies of list at buf and their
// addresses at ptrs.
func writeStrings(g *memory.Guest, list []string, ptrs, buf uint32) wasi.Errno {
	for i, s := range list {
		if err := g.WriteU32(ptrs+uint32(i)*4, buf); err != nil {
			return wasi.EFAULT
		}
		data := append([]byte(s), 0)
		if err := g.Write(buf, data); err != nil {
			return wasi.EFAULT
		}
		buf += uint32(len(data))
	}
	return wasi.ESUCCESS
}

func writeSizes(g *memory.Guest, list []string, countPtr, sizePtr uint32) wasi.Errno {
	size := 0
	for _, s := range list {
		size += len(s) + 1
	}
	if g.WriteU32(countPtr, uint32(len(list))) != nil || g.WriteU32(sizePtr, uint32(size)) != nil {
		return wasi.EFAULT
	}
	return wasi.ESUCCESS
}

func (w *WASI) clockResGet(_ context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	switch uint32(params[0]) {
	case wasi.ClockRealtime, wasi.ClockMonotonic:
		if g.WriteU64(uint32(params[1]), 1) != nil {
			return wasi.EFAULT
		}
		return wasi.ESUCCESS
	default:
		return wasi.EINVAL
	}
}

func (w *WASI) clockTimeGet(_ context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	var ns uint64
	switch uint32(params[0]) {
	case wasi.ClockRealtime:
		ns = uint64(w.now().UnixNano())
	case wasi.ClockMonotonic:
		ns = uint64(time.Since(w.start).Nanoseconds())
	default:
		return wasi.EINVAL
	}
	if g.WriteU64(uint32(params[2]), ns) != nil {
		return wasi.EFAULT
	}
	return wasi.ESUCCESS
}

func (w *WASI) randomGet(_ context.Context, g *memory.Guest, params []uint64) wasi.Errno {
	buf, err := g.Read(uint32(params[0]), uint32(params[1]))
	if err != nil {
		return wasi.EFAULT
	}
	if _, err := io.ReadFull(w.random, buf); err != nil {
		return wasi.EIO
	}
	return wasi.ESUCCESS
}

func (w *WASI) schedYield(context.Context, *memory.Guest, []uint64) wasi.Errno {
	return wasi.ESUCCESS
}

// procExit closes the module with the exit code and unwinds the guest.
func (w *WASI) procExit(ctx context.Context, mod api.Module, stack []uint64) {
	code := uint32(stack[0])
	Logger().Debug("proc_exit", zap.Uint32("code", code))
	_ = mod.CloseWithExitCode(ctx, code)
	panic(sys.NewExitError(code))
}
