package abi

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/linker"
)

// wasi_unstable orders whence as CUR, END, SET.
var (
	unstableToStable = [3]uint32{1, 2, 0}
	stableToUnstable = [3]uint32{2, 0, 1}
)

// WhenceToStable maps an unstable whence value to its stable equivalent.
func WhenceToStable(w uint32) (uint32, error) {
	if w >= uint32(len(unstableToStable)) {
		return 0, errors.InvalidEnum(errors.PhaseABI, []string{"fd_seek", "whence"}, w, "whence")
	}
	return unstableToStable[w], nil
}

// WhenceToUnstable is the inverse of WhenceToStable.
func WhenceToUnstable(w uint32) (uint32, error) {
	if w >= uint32(len(stableToUnstable)) {
		return 0, errors.InvalidEnum(errors.PhaseABI, []string{"fd_seek", "whence"}, w, "whence")
	}
	return stableToUnstable[w], nil
}

// SeekShim adapts a stable fd_seek to unstable whence ordering. An
// out-of-range whence traps the call with an InvalidEnum error.
func SeekShim(stable *linker.FuncDef, whenceParam int, s *Session) *linker.FuncDef {
	log := s.logger().With(zap.String("func", stable.Name))

	handler := func(ctx context.Context, mod api.Module, stack []uint64) {
		w, err := WhenceToStable(uint32(stack[whenceParam]))
		if err != nil {
			log.Warn("invalid whence", zap.Uint64("whence", stack[whenceParam]))
			panic(err)
		}
		stack[whenceParam] = uint64(w)
		stable.Call(ctx, mod, stack)
	}

	return &linker.FuncDef{
		Name:        stable.Name,
		Handler:     handler,
		ParamTypes:  stable.ParamTypes,
		ResultTypes: stable.ResultTypes,
	}
}
