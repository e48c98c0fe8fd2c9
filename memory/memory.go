// Package memory provides bounds-checked access to a guest's linear memory.
package memory

import (
	"bytes"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/layout"
)

// Guest wraps the memory of the module currently calling a host function.
// It is valid for the duration of that call only.
type Guest struct {
	Mem api.Memory
}

// Wrap returns a Guest over mod's memory, or nil when mod exports none.
func Wrap(mod api.Module) *Guest {
	if mod == nil || mod.Memory() == nil {
		return nil
	}
	return &Guest{Mem: mod.Memory()}
}

// Size returns the memory size in bytes.
func (g *Guest) Size() uint32 {
	return g.Mem.Size()
}

// Read returns a view of [offset, offset+length). Writes through the view
// are visible to the guest.
func (g *Guest) Read(offset, length uint32) ([]byte, error) {
	data, ok := g.Mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseHost, nil, offset, length)
	}
	return data, nil
}

// Write copies data to offset.
func (g *Guest) Write(offset uint32, data []byte) error {
	if !g.Mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseHost, nil, offset, uint32(len(data)))
	}
	return nil
}

// ReadString reads length bytes at offset as a string.
func (g *Guest) ReadString(offset, length uint32) (string, error) {
	data, err := g.Read(offset, length)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (g *Guest) ReadU32(offset uint32) (uint32, error) {
	v, ok := g.Mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseHost, nil, offset, 4)
	}
	return v, nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (g *Guest) WriteU32(offset, value uint32) error {
	if !g.Mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseHost, nil, offset, 4)
	}
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (g *Guest) WriteU64(offset uint32, value uint64) error {
	if !g.Mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseHost, nil, offset, 8)
	}
	return nil
}

// ReadRecord decodes schema from the bytes at offset.
func (g *Guest) ReadRecord(offset uint32, schema *layout.Schema) (layout.Record, error) {
	data, err := g.Read(offset, schema.Size())
	if err != nil {
		return nil, err
	}
	return schema.Decode(data)
}

// WriteRecord encodes rec with schema directly into memory at offset.
func (g *Guest) WriteRecord(offset uint32, schema *layout.Schema, rec layout.Record) error {
	dst, err := g.Read(offset, schema.Size())
	if err != nil {
		return err
	}
	return schema.EncodeInto(dst, rec)
}

// Snapshot copies [offset, offset+length), clamped to the end of memory.
// The result is empty when offset is past the end.
func (g *Guest) Snapshot(offset, length uint32) []byte {
	size := g.Mem.Size()
	if offset >= size {
		return nil
	}
	if length > size-offset {
		length = size - offset
	}
	data, _ := g.Mem.Read(offset, length)
	return bytes.Clone(data)
}

// Restore writes a Snapshot back to offset.
func (g *Guest) Restore(offset uint32, snap []byte) {
	if len(snap) > 0 {
		g.Mem.Write(offset, snap)
	}
}
