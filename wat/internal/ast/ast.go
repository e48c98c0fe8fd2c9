// Package ast holds a parsed text module ready for encoding.
package ast

import "github.com/wippyai/wasm-runner/wat/internal/opcode"

type ValType byte

const (
	I32       ValType = 0x7F
	I64       ValType = 0x7E
	F32       ValType = 0x7D
	F64       ValType = 0x7C
	V128      ValType = 0x7B
	FuncRef   ValType = 0x70
	ExternRef ValType = 0x6F
)

// External kinds shared by imports and exports.
const (
	KindFunc   byte = 0x00
	KindMemory byte = 0x02
	KindGlobal byte = 0x03
)

type Module struct {
	Start    *uint32
	Types    []FuncType
	Imports  []Import
	Funcs    []Func
	Memories []Limits
	Globals  []Global
	Exports  []Export
	Data     []Data
}

type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (ft FuncType) Equal(o FuncType) bool {
	return string(valBytes(ft.Params)) == string(valBytes(o.Params)) &&
		string(valBytes(ft.Results)) == string(valBytes(o.Results))
}

func valBytes(vs []ValType) []byte {
	out := make([]byte, len(vs))
	for i, v := range vs {
		out[i] = byte(v)
	}
	return out
}

type Limits struct {
	Max *uint32
	Min uint32
}

type GlobalType struct {
	Type    ValType
	Mutable bool
}

type Import struct {
	Module  string
	Name    string
	Memory  Limits
	Global  GlobalType
	TypeIdx uint32
	Kind    byte
}

type Func struct {
	Locals  []ValType
	Body    []Instr
	TypeIdx uint32
}

type Global struct {
	Init []Instr
	Type GlobalType
}

type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Data is an active segment in memory 0.
type Data struct {
	Offset []Instr
	Bytes  []byte
}

// Instr is one instruction. Imm holds uint32 for index classes, []uint32
// for br_table, int32 or int64 for integer constants, raw IEEE bits
// (uint32 or uint64) for float constants, Memarg or BlockType.
type Instr struct {
	Imm any
	Op  opcode.Op
}

type Memarg struct {
	Align  uint32
	Offset uint32
}

// BlockType is either a single-byte shorthand or a type index.
type BlockType struct {
	TypeIdx int64 // -1 selects Simple
	Simple  byte
}

// EmptyBlock is the block type with no params and no results.
const EmptyBlock byte = 0x40
