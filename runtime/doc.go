// Package runtime runs a single WebAssembly module once.
//
// A run loads the module (text modules are converted to binary), reads
// its function signatures, detects which preview1 namespace it imports
// and links the matching import table. Then it either calls one exported
// function with arguments coerced from strings, or hands control to the
// module's _start:
//
//	out, err := runtime.NewRunner(log).Run(ctx, runtime.Config{
//	    Path: "double.wasm",
//	    Args: []string{"21"},
//	})
//	// out.Mode == runtime.ModeInvoke, out.Results == []any{int32(42)}
//
// Modules importing wasi_unstable get the stable library behind shims that
// rewrite filestat records and seek whence values. Imports that nothing
// provides are stubbed to trap when called.
package runtime
