package linker

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/wasm"
)

// Instantiate builds one host module per namespace of t into rt. Modules
// are created in namespace order; on failure the ones already created are
// closed.
func Instantiate(ctx context.Context, rt wazero.Runtime, t Table) ([]api.Module, error) {
	var mods []api.Module
	for _, ns := range t.Namespaces() {
		builder := rt.NewHostModuleBuilder(ns)
		funcs := 0
		t.Each(func(namespace string, def *FuncDef) {
			if namespace != ns {
				return
			}
			builder.NewFunctionBuilder().
				WithGoModuleFunction(def.Handler, def.ParamTypes, def.ResultTypes).
				Export(def.Name)
			funcs++
		})

		mod, err := builder.Instantiate(ctx)
		if err != nil {
			for _, m := range mods {
				_ = m.Close(ctx)
			}
			return nil, errors.Instantiation("host module "+ns, err)
		}
		Logger().Debug("host module instantiated",
			zap.String("namespace", ns),
			zap.Int("functions", funcs))
		mods = append(mods, mod)
	}
	return mods, nil
}

// StubMissing defines a trapping stub in t for every function import with
// no definition, so instantiation does not fail on imports the guest never
// calls. A stub panics with a MissingImport error naming the import.
// Imports whose signature has no host representation are left alone.
// It returns the stubbed imports as "namespace#name".
func StubMissing(t Table, imports []wasm.FuncImport) []string {
	var stubbed []string
	for _, imp := range imports {
		if _, ok := t.Lookup(imp.Module, imp.Name); ok {
			continue
		}
		params, ok := ValueTypes(imp.Params)
		if !ok {
			continue
		}
		results, ok := ValueTypes(imp.Results)
		if !ok {
			continue
		}
		missing := errors.MissingImport(imp.Module, imp.Name)
		t.DefineFunc(imp.Module, imp.Name, func(context.Context, api.Module, []uint64) {
			panic(missing)
		}, params, results)
		stubbed = append(stubbed, imp.Module+"#"+imp.Name)
	}
	if len(stubbed) > 0 {
		Logger().Debug("stubbed unresolved imports", zap.Strings("imports", stubbed))
	}
	return stubbed
}

// ValueTypes converts introspected value types to engine value types.
// It reports false when any type cannot cross the host boundary.
func ValueTypes(types []wasm.ValueType) ([]api.ValueType, bool) {
	out := make([]api.ValueType, len(types))
	for i, vt := range types {
		switch vt {
		case wasm.ValueI32:
			out[i] = api.ValueTypeI32
		case wasm.ValueI64:
			out[i] = api.ValueTypeI64
		case wasm.ValueF32:
			out[i] = api.ValueTypeF32
		case wasm.ValueF64:
			out[i] = api.ValueTypeF64
		case wasm.ValueExternRef:
			out[i] = api.ValueTypeExternref
		case wasm.ValueFuncRef:
			out[i] = api.ValueTypeFuncref
		default:
			return nil, false
		}
	}
	return out, true
}
