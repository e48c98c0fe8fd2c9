// Package wasi holds the WASI preview1 vocabulary shared by the capability
// library and the ABI shims: errno values, file types, whence ordering and
// the fixed record layouts (filestat in both ABI versions, fdstat, prestat,
// iovec) expressed as layout schemas.
package wasi
