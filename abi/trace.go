package abi

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-runner/linker"
)

// Trace returns a copy of t with every function wrapped by Wrap.
func Trace(t linker.Table, sink *zap.Logger) linker.Table {
	out := linker.NewTable()
	t.Each(func(ns string, def *linker.FuncDef) {
		out.Define(ns, Wrap(ns, def, sink))
	})
	return out
}

// Wrap returns def with a handler that logs exactly one record per call:
// the call name, its arguments and either its results or its failure.
// A failure is re-raised with the original panic value.
func Wrap(namespace string, def *linker.FuncDef, sink *zap.Logger) *linker.FuncDef {
	if sink == nil {
		sink = zap.NewNop()
	}
	name := namespace + "!" + def.Name
	nparams, nresults := len(def.ParamTypes), len(def.ResultTypes)

	handler := func(ctx context.Context, mod api.Module, stack []uint64) {
		args := slices.Clone(stack[:nparams])
		defer func() {
			if r := recover(); r != nil {
				sink.Debug("host call failed",
					zap.String("call", name),
					zap.Uint64s("args", args),
					zap.String("failure", describeFailure(r)))
				panic(r)
			}
		}()

		def.Call(ctx, mod, stack)

		sink.Debug("host call",
			zap.String("call", name),
			zap.Uint64s("args", args),
			zap.Uint64s("results", stack[:nresults]))
	}

	return &linker.FuncDef{
		Name:        def.Name,
		Handler:     handler,
		ParamTypes:  def.ParamTypes,
		ResultTypes: def.ResultTypes,
	}
}

func describeFailure(r any) string {
	if err, ok := r.(error); ok {
		var exit *sys.ExitError
		if errors.As(err, &exit) {
			return fmt.Sprintf("exit(%d)", exit.ExitCode())
		}
		return err.Error()
	}
	return fmt.Sprint(r)
}
