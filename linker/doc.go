// Package linker assembles host import tables and turns them into engine
// host modules.
//
// A Table maps an import namespace to its host functions:
//
//	t := linker.NewTable()
//	t.DefineFunc("env", "log", logFn, []api.ValueType{api.ValueTypeI32}, nil)
//	linker.StubMissing(t, mod.FuncImports())
//	hostMods, err := linker.Instantiate(ctx, rt, t)
//
// Tables are plain maps. Clone copies the maps and shares the FuncDef
// values, which is how ABI shims derive one namespace's table from another.
package linker
