package abi

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-runner/linker"
	"github.com/wippyai/wasm-runner/wasi"
)

// Stack positions of the parameters the unstable shims rewrite.
const (
	fdFilestatBufParam   = 1 // fd_filestat_get(fd, buf)
	pathFilestatBufParam = 4 // path_filestat_get(fd, flags, path, path_len, buf)
	fdSeekWhenceParam    = 2 // fd_seek(fd, offset, whence, newoffset)
)

// Library is a capability library exposing its functions under the stable
// namespace.
type Library interface {
	Table() linker.Table
}

// Session is the per-run context the shims close over. It lives as long
// as the run that created it.
type Session struct {
	Logger *zap.Logger
	ID     string
}

// NewSession returns a session whose logger carries the run id.
func NewSession(id string, l *zap.Logger) *Session {
	if l == nil {
		l = zap.NewNop()
	}
	return &Session{ID: id, Logger: l.With(zap.String("run_id", id))}
}

func (s *Session) logger() *zap.Logger {
	if s == nil || s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// BuildImports returns the import table for a module of version v.
// Stable modules get the library's own table. Unstable modules get the
// stable functions re-homed under wasi_unstable, with fd_seek,
// fd_filestat_get and path_filestat_get replaced by shims. Modules
// without a capability namespace get an empty table.
func BuildImports(v Version, lib Library, s *Session) linker.Table {
	switch v {
	case VersionStable:
		return lib.Table()
	case VersionUnstable:
		return unstableTable(lib.Table(), s)
	default:
		return linker.NewTable()
	}
}

func unstableTable(native linker.Table, s *Session) linker.Table {
	out := native.Clone()
	if funcs, ok := out[wasi.SnapshotNamespace]; ok {
		delete(out, wasi.SnapshotNamespace)
		out[wasi.UnstableNamespace] = funcs
	}

	replace := func(name string, wrap func(*linker.FuncDef) *linker.FuncDef) {
		if def, ok := native.Lookup(wasi.SnapshotNamespace, name); ok {
			out.Define(wasi.UnstableNamespace, wrap(def))
		}
	}
	replace("fd_seek", func(def *linker.FuncDef) *linker.FuncDef {
		return SeekShim(def, fdSeekWhenceParam, s)
	})
	replace("fd_filestat_get", func(def *linker.FuncDef) *linker.FuncDef {
		return StatusShim(def, fdFilestatBufParam, s)
	})
	replace("path_filestat_get", func(def *linker.FuncDef) *linker.FuncDef {
		return StatusShim(def, pathFilestatBufParam, s)
	})

	s.logger().Debug("unstable import table built", zap.Int("functions", out.Len()))
	return out
}
