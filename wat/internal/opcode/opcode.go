// Package opcode maps text instruction names to their binary encoding.
package opcode

import "strings"

// Class says which immediates follow an opcode.
type Class int

const (
	Plain      Class = iota
	Local            // local index
	Global           // global index
	Func             // function index
	Label            // relative label depth
	LabelTable       // br_table targets, default last
	Memarg           // align and offset
	MemIdx           // memory index, 0 when omitted
	ConstI32
	ConstI64
	ConstF32
	ConstF64
	Block  // block type, then a nested sequence
	Prefix // 0xFC sub-opcode followed by Zeros zero bytes
)

// Op describes one instruction.
type Op struct {
	Code  byte
	Class Class
	Align uint32 // natural alignment exponent for Memarg
	Sub   uint32
	Zeros int
}

// Structural opcodes.
const (
	OpBlock  byte = 0x02
	OpLoop   byte = 0x03
	OpIf     byte = 0x04
	OpElse   byte = 0x05
	OpEnd    byte = 0x0B
	OpPrefix byte = 0xFC
)

var ops = map[string]Op{
	"unreachable": {Code: 0x00},
	"nop":         {Code: 0x01},
	"block":       {Code: OpBlock, Class: Block},
	"loop":        {Code: OpLoop, Class: Block},
	"if":          {Code: OpIf, Class: Block},
	"br":          {Code: 0x0C, Class: Label},
	"br_if":       {Code: 0x0D, Class: Label},
	"br_table":    {Code: 0x0E, Class: LabelTable},
	"return":      {Code: 0x0F},
	"call":        {Code: 0x10, Class: Func},
	"drop":        {Code: 0x1A},
	"select":      {Code: 0x1B},
	"local.get":   {Code: 0x20, Class: Local},
	"local.set":   {Code: 0x21, Class: Local},
	"local.tee":   {Code: 0x22, Class: Local},
	"global.get":  {Code: 0x23, Class: Global},
	"global.set":  {Code: 0x24, Class: Global},
	"memory.size": {Code: 0x3F, Class: MemIdx},
	"memory.grow": {Code: 0x40, Class: MemIdx},
	"i32.const":   {Code: 0x41, Class: ConstI32},
	"i64.const":   {Code: 0x42, Class: ConstI64},
	"f32.const":   {Code: 0x43, Class: ConstF32},
	"f64.const":   {Code: 0x44, Class: ConstF64},
	"memory.copy": {Code: OpPrefix, Class: Prefix, Sub: 10, Zeros: 2},
	"memory.fill": {Code: OpPrefix, Class: Prefix, Sub: 11, Zeros: 1},
}

// run assigns consecutive opcodes starting at first.
func run(first byte, class Class, names ...string) {
	for i, name := range names {
		ops[name] = Op{Code: first + byte(i), Class: class}
	}
}

func init() {
	run(0x45, Plain,
		"i32.eqz", "i32.eq", "i32.ne", "i32.lt_s", "i32.lt_u", "i32.gt_s", "i32.gt_u",
		"i32.le_s", "i32.le_u", "i32.ge_s", "i32.ge_u",
		"i64.eqz", "i64.eq", "i64.ne", "i64.lt_s", "i64.lt_u", "i64.gt_s", "i64.gt_u",
		"i64.le_s", "i64.le_u", "i64.ge_s", "i64.ge_u",
		"f32.eq", "f32.ne", "f32.lt", "f32.gt", "f32.le", "f32.ge",
		"f64.eq", "f64.ne", "f64.lt", "f64.gt", "f64.le", "f64.ge",
		"i32.clz", "i32.ctz", "i32.popcnt", "i32.add", "i32.sub", "i32.mul",
		"i32.div_s", "i32.div_u", "i32.rem_s", "i32.rem_u", "i32.and", "i32.or", "i32.xor",
		"i32.shl", "i32.shr_s", "i32.shr_u", "i32.rotl", "i32.rotr",
		"i64.clz", "i64.ctz", "i64.popcnt", "i64.add", "i64.sub", "i64.mul",
		"i64.div_s", "i64.div_u", "i64.rem_s", "i64.rem_u", "i64.and", "i64.or", "i64.xor",
		"i64.shl", "i64.shr_s", "i64.shr_u", "i64.rotl", "i64.rotr",
		"f32.abs", "f32.neg", "f32.ceil", "f32.floor", "f32.trunc", "f32.nearest", "f32.sqrt",
		"f32.add", "f32.sub", "f32.mul", "f32.div", "f32.min", "f32.max", "f32.copysign",
		"f64.abs", "f64.neg", "f64.ceil", "f64.floor", "f64.trunc", "f64.nearest", "f64.sqrt",
		"f64.add", "f64.sub", "f64.mul", "f64.div", "f64.min", "f64.max", "f64.copysign",
		"i32.wrap_i64", "i32.trunc_f32_s", "i32.trunc_f32_u", "i32.trunc_f64_s", "i32.trunc_f64_u",
		"i64.extend_i32_s", "i64.extend_i32_u",
		"i64.trunc_f32_s", "i64.trunc_f32_u", "i64.trunc_f64_s", "i64.trunc_f64_u",
		"f32.convert_i32_s", "f32.convert_i32_u", "f32.convert_i64_s", "f32.convert_i64_u", "f32.demote_f64",
		"f64.convert_i32_s", "f64.convert_i32_u", "f64.convert_i64_s", "f64.convert_i64_u", "f64.promote_f32",
		"i32.reinterpret_f32", "i64.reinterpret_f64", "f32.reinterpret_i32", "f64.reinterpret_i64",
		"i32.extend8_s", "i32.extend16_s", "i64.extend8_s", "i64.extend16_s", "i64.extend32_s",
	)

	memory := []struct {
		name  string
		align uint32
	}{
		{"i32.load", 2}, {"i64.load", 3}, {"f32.load", 2}, {"f64.load", 3},
		{"i32.load8_s", 0}, {"i32.load8_u", 0}, {"i32.load16_s", 1}, {"i32.load16_u", 1},
		{"i64.load8_s", 0}, {"i64.load8_u", 0}, {"i64.load16_s", 1}, {"i64.load16_u", 1},
		{"i64.load32_s", 2}, {"i64.load32_u", 2},
		{"i32.store", 2}, {"i64.store", 3}, {"f32.store", 2}, {"f64.store", 3},
		{"i32.store8", 0}, {"i32.store16", 1},
		{"i64.store8", 0}, {"i64.store16", 1}, {"i64.store32", 2},
	}
	for i, m := range memory {
		ops[m.name] = Op{Code: 0x28 + byte(i), Class: Memarg, Align: m.align}
	}

	for i, name := range []string{
		"i32.trunc_sat_f32_s", "i32.trunc_sat_f32_u", "i32.trunc_sat_f64_s", "i32.trunc_sat_f64_u",
		"i64.trunc_sat_f32_s", "i64.trunc_sat_f32_u", "i64.trunc_sat_f64_s", "i64.trunc_sat_f64_u",
	} {
		ops[name] = Op{Code: OpPrefix, Class: Prefix, Sub: uint32(i)}
	}
}

// Lookup returns the instruction named name.
func Lookup(name string) (Op, bool) {
	op, ok := ops[name]
	return op, ok
}

// unsupported lists instruction families that are valid text but not
// compiled here.
var unsupported = []string{
	"call_indirect", "return_call", "table.", "elem.", "ref.", "memory.init", "data.drop",
	"v128.", "i8x16.", "i16x8.", "i32x4.", "i64x2.", "f32x4.", "f64x2.",
	"memory.atomic.", "atomic.", "try", "throw", "rethrow", "delegate", "catch",
	"struct.", "array.", "i31.", "any.", "extern.",
}

// Unsupported reports whether name belongs to a known but unsupported
// instruction family.
func Unsupported(name string) bool {
	for _, prefix := range unsupported {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	if strings.Contains(name, ".atomic.") {
		return true
	}
	return false
}
