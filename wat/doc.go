// Package wat compiles the WebAssembly text format to binary.
//
// The compiled subset covers what the runner's own modules and tests use:
//
//   - type, import, func, memory, global, export, start and active data fields
//   - inline export and import abbreviations on func, memory and global
//   - symbolic names for types, functions, locals, globals, memories and labels
//   - flat and folded instructions, including block, loop and if with
//     multi-value block types
//   - MVP numeric, variable, control and memory instructions, sign extension,
//     saturating truncation, memory.copy and memory.fill
//
// Tables, element segments, reference types, SIMD, threads and exception
// handling report ErrUnsupported.
//
// Example:
//
//	bin, err := wat.Compile(`(module
//	  (func (export "add") (param i32 i32) (result i32)
//	    (i32.add (local.get 0) (local.get 1))))`)
package wat
