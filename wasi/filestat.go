package wasi

import (
	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/layout"
)

// Namespaces under which modules import the preview1 capability functions.
const (
	NamespacePrefix      = "wasi_"
	UnstableNamespace    = "wasi_unstable"
	SnapshotNamespace    = "wasi_snapshot_preview1"
	StableFilestatSize   = 64
	UnstableFilestatSize = 56
)

// StableFilestat is the wasi_snapshot_preview1 filestat layout.
var StableFilestat = layout.MustSchema("filestat",
	layout.U64("dev"),
	layout.U64("ino"),
	layout.U8("filetype"),
	layout.Reserved(7),
	layout.U64("nlink"),
	layout.U64("size"),
	layout.U64("atim"),
	layout.U64("mtim"),
	layout.U64("ctim"),
)

// UnstableFilestat is the wasi_unstable filestat layout: nlink is 32 bits
// and everything after it moves up by 8 bytes.
var UnstableFilestat = layout.MustSchema("filestat_unstable",
	layout.U64("dev"),
	layout.U64("ino"),
	layout.U8("filetype"),
	layout.Reserved(3),
	layout.U32("nlink"),
	layout.U64("size"),
	layout.U64("atim"),
	layout.U64("mtim"),
	layout.U64("ctim"),
)

// Filestat is the logical status record shared by both layouts.
type Filestat struct {
	Dev      uint64
	Ino      uint64
	Filetype Filetype
	Nlink    uint64
	Size     uint64
	Atim     uint64
	Mtim     uint64
	Ctim     uint64
}

// Record converts st for encoding with StableFilestat.
func (st Filestat) Record() layout.Record {
	return layout.Record{
		"dev":      st.Dev,
		"ino":      st.Ino,
		"filetype": uint8(st.Filetype),
		"nlink":    st.Nlink,
		"size":     st.Size,
		"atim":     st.Atim,
		"mtim":     st.Mtim,
		"ctim":     st.Ctim,
	}
}

// FilestatFromRecord reads a record decoded with either filestat schema.
func FilestatFromRecord(r layout.Record) (Filestat, error) {
	var st Filestat
	fields := []struct {
		name string
		dst  *uint64
	}{
		{"dev", &st.Dev},
		{"ino", &st.Ino},
		{"nlink", &st.Nlink},
		{"size", &st.Size},
		{"atim", &st.Atim},
		{"mtim", &st.Mtim},
		{"ctim", &st.Ctim},
	}
	for _, f := range fields {
		v, ok := r[f.name].(uint64)
		if !ok {
			return Filestat{}, errors.ShapeMismatch([]string{"filestat", f.name}, "expected u64, got %T", r[f.name])
		}
		*f.dst = v
	}
	ft, ok := r["filetype"].(uint64)
	if !ok {
		return Filestat{}, errors.ShapeMismatch([]string{"filestat", "filetype"}, "expected u8, got %T", r["filetype"])
	}
	st.Filetype = Filetype(ft)
	return st, nil
}

// StableToUnstable re-lays-out a 64-byte stable filestat as the 56-byte
// unstable form. nlink keeps its low 32 bits.
func StableToUnstable(stable []byte) ([]byte, error) {
	rec, err := StableFilestat.Decode(stable)
	if err != nil {
		return nil, err
	}
	rec["nlink"] = rec["nlink"].(uint64) & 0xFFFFFFFF
	return UnstableFilestat.Encode(rec)
}
