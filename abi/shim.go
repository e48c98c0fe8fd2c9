package abi

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/linker"
	"github.com/wippyai/wasm-runner/memory"
	"github.com/wippyai/wasm-runner/wasi"
)

// tailLen is the span the stable record occupies beyond the unstable one.
const tailLen = wasi.StableFilestatSize - wasi.UnstableFilestatSize

// Relayout rewrites the stable filestat at the start of region as the
// unstable layout, in place. Bytes from offset 56 on are left as the
// stable write produced them.
func Relayout(region []byte) error {
	if len(region) < wasi.StableFilestatSize {
		return errors.LengthMismatch(errors.PhaseABI, wasi.StableFilestat.Name(), len(region), wasi.StableFilestatSize)
	}
	unstable, err := wasi.StableToUnstable(region[:wasi.StableFilestatSize])
	if err != nil {
		return err
	}
	copy(region, unstable)
	return nil
}

// StatusShim adapts a stable filestat function to the unstable layout.
// bufParam is the stack index of the record pointer. Around each call the
// shim saves the 8 bytes past the unstable record, lets the stable
// function write 64 bytes, re-lays them out as 56 and puts the saved bytes
// back, also when relayout fails. The stable errno is returned as is;
// relayout happens only on success.
func StatusShim(stable *linker.FuncDef, bufParam int, s *Session) *linker.FuncDef {
	log := s.logger().With(zap.String("func", stable.Name))

	handler := func(ctx context.Context, mod api.Module, stack []uint64) {
		buf := uint32(stack[bufParam])
		g := memory.Wrap(mod)

		tailOff := uint64(buf) + wasi.UnstableFilestatSize
		if g != nil && tailOff < uint64(g.Size()) {
			tail := g.Snapshot(uint32(tailOff), tailLen)
			defer g.Restore(uint32(tailOff), tail)
		}

		stable.Call(ctx, mod, stack)

		if g == nil {
			return
		}
		if errno := wasi.Errno(uint32(stack[0])); errno == wasi.ESUCCESS {
			region, err := g.Read(buf, wasi.StableFilestatSize)
			if err == nil {
				err = Relayout(region)
			}
			if err != nil {
				log.Error("filestat relayout failed", zap.Uint32("buf", buf), zap.Error(err))
				panic(err)
			}
			log.Debug("filestat relayout", zap.Uint32("buf", buf))
		}
	}

	return &linker.FuncDef{
		Name:        stable.Name,
		Handler:     handler,
		ParamTypes:  stable.ParamTypes,
		ResultTypes: stable.ResultTypes,
	}
}
