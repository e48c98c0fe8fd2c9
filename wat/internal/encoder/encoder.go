// Package encoder writes a module AST as a WebAssembly binary.
package encoder

import (
	"encoding/binary"
	"fmt"

	"github.com/wippyai/wasm-runner/wat/internal/ast"
	"github.com/wippyai/wasm-runner/wat/internal/opcode"
)

var header = []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}

// Section ids in the order they must appear.
const (
	secType   byte = 1
	secImport byte = 2
	secFunc   byte = 3
	secMemory byte = 5
	secGlobal byte = 6
	secExport byte = 7
	secStart  byte = 8
	secCode   byte = 10
	secData   byte = 11
)

// Encode returns the binary form of m.
func Encode(m *ast.Module) ([]byte, error) {
	out := append([]byte(nil), header...)

	if len(m.Types) > 0 {
		var b buf
		b.u32(uint32(len(m.Types)))
		for _, t := range m.Types {
			b.byte(0x60)
			b.valTypes(t.Params)
			b.valTypes(t.Results)
		}
		out = section(out, secType, b)
	}

	if len(m.Imports) > 0 {
		var b buf
		b.u32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			b.name(imp.Module)
			b.name(imp.Name)
			b.byte(imp.Kind)
			switch imp.Kind {
			case ast.KindFunc:
				b.u32(imp.TypeIdx)
			case ast.KindMemory:
				b.limits(imp.Memory)
			case ast.KindGlobal:
				b.globalType(imp.Global)
			}
		}
		out = section(out, secImport, b)
	}

	if len(m.Funcs) > 0 {
		var b buf
		b.u32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			b.u32(f.TypeIdx)
		}
		out = section(out, secFunc, b)
	}

	if len(m.Memories) > 0 {
		var b buf
		b.u32(uint32(len(m.Memories)))
		for _, l := range m.Memories {
			b.limits(l)
		}
		out = section(out, secMemory, b)
	}

	if len(m.Globals) > 0 {
		var b buf
		b.u32(uint32(len(m.Globals)))
		for _, g := range m.Globals {
			b.globalType(g.Type)
			if err := b.expr(g.Init); err != nil {
				return nil, err
			}
		}
		out = section(out, secGlobal, b)
	}

	if len(m.Exports) > 0 {
		var b buf
		b.u32(uint32(len(m.Exports)))
		for _, e := range m.Exports {
			b.name(e.Name)
			b.byte(e.Kind)
			b.u32(e.Idx)
		}
		out = section(out, secExport, b)
	}

	if m.Start != nil {
		var b buf
		b.u32(*m.Start)
		out = section(out, secStart, b)
	}

	if len(m.Funcs) > 0 {
		var b buf
		b.u32(uint32(len(m.Funcs)))
		for i, f := range m.Funcs {
			var body buf
			body.locals(f.Locals)
			if err := body.expr(f.Body); err != nil {
				return nil, fmt.Errorf("func %d: %w", i, err)
			}
			b.u32(uint32(len(body)))
			b = append(b, body...)
		}
		out = section(out, secCode, b)
	}

	if len(m.Data) > 0 {
		var b buf
		b.u32(uint32(len(m.Data)))
		for _, d := range m.Data {
			b.u32(0) // active, memory 0
			if err := b.expr(d.Offset); err != nil {
				return nil, err
			}
			b.u32(uint32(len(d.Bytes)))
			b = append(b, d.Bytes...)
		}
		out = section(out, secData, b)
	}

	return out, nil
}

func section(out []byte, id byte, payload buf) []byte {
	out = append(out, id)
	out = appendU32(out, uint32(len(payload)))
	return append(out, payload...)
}

type buf []byte

func (b *buf) byte(v byte) { *b = append(*b, v) }

func (b *buf) u32(v uint32) { *b = appendU32(*b, v) }

func (b *buf) s64(v int64) { *b = appendS64(*b, v) }

func (b *buf) name(s string) {
	b.u32(uint32(len(s)))
	*b = append(*b, s...)
}

func (b *buf) valTypes(vs []ast.ValType) {
	b.u32(uint32(len(vs)))
	for _, v := range vs {
		b.byte(byte(v))
	}
}

func (b *buf) limits(l ast.Limits) {
	if l.Max == nil {
		b.byte(0x00)
		b.u32(l.Min)
		return
	}
	b.byte(0x01)
	b.u32(l.Min)
	b.u32(*l.Max)
}

func (b *buf) globalType(g ast.GlobalType) {
	b.byte(byte(g.Type))
	if g.Mutable {
		b.byte(0x01)
	} else {
		b.byte(0x00)
	}
}

// locals writes declarations grouped into runs of equal type.
func (b *buf) locals(vs []ast.ValType) {
	type run struct {
		n uint32
		t ast.ValType
	}
	var runs []run
	for _, v := range vs {
		if len(runs) > 0 && runs[len(runs)-1].t == v {
			runs[len(runs)-1].n++
			continue
		}
		runs = append(runs, run{n: 1, t: v})
	}
	b.u32(uint32(len(runs)))
	for _, r := range runs {
		b.u32(r.n)
		b.byte(byte(r.t))
	}
}

// expr writes instrs followed by the closing end.
func (b *buf) expr(instrs []ast.Instr) error {
	for _, in := range instrs {
		if err := b.instr(in); err != nil {
			return err
		}
	}
	b.byte(opcode.OpEnd)
	return nil
}

func (b *buf) instr(in ast.Instr) error {
	b.byte(in.Op.Code)
	switch in.Op.Class {
	case opcode.Plain:
	case opcode.Local, opcode.Global, opcode.Func, opcode.Label:
		b.u32(in.Imm.(uint32))
	case opcode.LabelTable:
		targets := in.Imm.([]uint32)
		b.u32(uint32(len(targets) - 1))
		for _, t := range targets {
			b.u32(t)
		}
	case opcode.Memarg:
		m := in.Imm.(ast.Memarg)
		b.u32(m.Align)
		b.u32(m.Offset)
	case opcode.MemIdx:
		b.byte(0x00)
	case opcode.ConstI32:
		b.s64(int64(in.Imm.(int32)))
	case opcode.ConstI64:
		b.s64(in.Imm.(int64))
	case opcode.ConstF32:
		*b = binary.LittleEndian.AppendUint32(*b, in.Imm.(uint32))
	case opcode.ConstF64:
		*b = binary.LittleEndian.AppendUint64(*b, in.Imm.(uint64))
	case opcode.Block:
		bt := in.Imm.(ast.BlockType)
		if bt.TypeIdx < 0 {
			b.byte(bt.Simple)
		} else {
			b.s64(bt.TypeIdx)
		}
	case opcode.Prefix:
		b.u32(in.Op.Sub)
		for i := 0; i < in.Op.Zeros; i++ {
			b.byte(0x00)
		}
	default:
		return fmt.Errorf("opcode 0x%02x: unknown immediate class %d", in.Op.Code, in.Op.Class)
	}
	return nil
}
