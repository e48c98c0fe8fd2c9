// Package preview1 is the host side of wasi_snapshot_preview1.
//
// It covers what command-style guests need to start, talk over stdio,
// read preopened directories and exit: argv and environ, clocks, random,
// descriptor I/O and seeking, filestat and path_open. Records written to
// guest memory go through the layout schemas in package wasi, so the
// filestat written here is always the 64-byte stable layout.
//
//	w := preview1.New().
//	    WithArgs([]string{"app.wasm", "-v"}).
//	    WithPreopen("./data", "/data")
//	if err := w.Open(); err != nil {
//	    return err
//	}
//	defer w.Close()
//	table := w.Table() // hand to abi.BuildImports
//
// Unknown descriptors yield EBADF, bad guest pointers EFAULT, and OS
// errors are mapped to the nearest preview1 errno.
package preview1
