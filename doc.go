// Package wasmrunner runs a WebAssembly module once from the command line
// or from Go.
//
// Modules compiled against either preview1 namespace run unchanged:
// wasi_snapshot_preview1 imports are served directly, and wasi_unstable
// imports are served by the same functions behind shims that translate the
// 56-byte filestat record and the rotated seek whence values.
//
// # Packages
//
//	wasmrunner/
//	├── runtime/         Load, select and run a module
//	├── abi/             Namespace detection, unstable shims, call tracer
//	├── wasm/            Function signature introspection
//	├── invoke/          String argument coercion and result decoding
//	├── layout/          Fixed-layout record codec
//	├── linker/          Import tables and host module instantiation
//	├── memory/          Bounds-checked guest memory access
//	├── resource/        Descriptor handle table
//	├── errors/          Structured error types
//	├── wasi/            Preview1 records and constants
//	│   └── preview1/    Preview1 host functions over the OS
//	└── cmd/run/         The run command
//
// # Quick Start
//
//	out, err := runtime.NewRunner(logger).Run(ctx, runtime.Config{
//	    Path: "double.wasm",
//	    Args: []string{"21"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(invoke.FormatResults(out.Results)) // 42
//
// From the shell:
//
//	run double.wasm 21
//	run --func add math.wat 2 3
//	run --dir ./data:/data --trace app.wasm input.txt
//	run --list app.wasm
package wasmrunner
