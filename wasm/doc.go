// Package wasm introspects WebAssembly binary modules.
//
// ParseModule reads only what the runner needs to reason about a module
// before handing it to the engine: the type section, imports, the function
// section and exports. Every other section is skipped by its declared size,
// so modules using features the parser does not model still introspect.
//
// # Signatures
//
// Analyze returns the function signature table:
//
//	sigs, mod, err := wasm.Analyze(data)
//	for _, sig := range sigs.ByIndex {
//	    fmt.Println(sig)
//	}
//
// ByIndex covers the whole function index space, imported functions first.
// ByName maps each exported function name to the same *FunctionSignature as
// ByIndex, so aliases of one function share a record.
//
// Value types outside i32, i64, f32, f64, v128, funcref and externref are
// reported as ValueUnknown rather than failing the parse.
package wasm
