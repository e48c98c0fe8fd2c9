// Package abi bridges the two WASI preview1 ABI versions.
//
// The capability library implements wasi_snapshot_preview1 only. Modules
// built against wasi_unstable import the same functions under another
// namespace and disagree with it in two places: filestat is 56 bytes with
// a 32-bit link count, and fd_seek orders whence as CUR, END, SET.
// BuildImports re-homes the stable table for such modules and swaps in
// shims for fd_seek, fd_filestat_get and path_filestat_get.
//
// The filestat shims let the stable function write its 64-byte record and
// then compact it to 56 bytes in place, restoring the 8 guest bytes the
// larger write clobbered.
//
// Trace wraps a table so every host call produces one log record.
package abi
