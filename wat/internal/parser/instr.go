package parser

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/wippyai/wasm-runner/wat/internal/ast"
	"github.com/wippyai/wasm-runner/wat/internal/opcode"
	"github.com/wippyai/wasm-runner/wat/internal/token"
)

var (
	opElse = opcode.Op{Code: opcode.OpElse}
	opEnd  = opcode.Op{Code: opcode.OpEnd}
)

func constOffset(v int32) []ast.Instr {
	op, _ := opcode.Lookup("i32.const")
	return []ast.Instr{{Op: op, Imm: v}}
}

// seq parses instructions until c is exhausted or a flat end or else is
// next, which is left for the enclosing block.
func (p *Parser) seq(c *cursor, out []ast.Instr) ([]ast.Instr, error) {
	for !c.done() {
		n := c.peek()
		if n.keyword("end") || n.keyword("else") {
			return out, nil
		}
		var err error
		if n.isList {
			c.next()
			out, err = p.folded(n, out)
		} else {
			out, err = p.flat(c, out)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *Parser) lookup(n *node) (opcode.Op, error) {
	if n == nil {
		return opcode.Op{}, fmt.Errorf("unexpected end of input, expected instruction")
	}
	if !n.is(token.Keyword) {
		return opcode.Op{}, errorf(n, "expected instruction, got %s", n)
	}
	name := n.tok.Text
	if op, ok := opcode.Lookup(name); ok {
		return op, nil
	}
	if opcode.Unsupported(name) {
		return opcode.Op{}, unsupportedf(n, "instruction %s", name)
	}
	return opcode.Op{}, errorf(n, "unknown instruction %s", name)
}

// flat parses one instruction written in linear form.
func (p *Parser) flat(c *cursor, out []ast.Instr) ([]ast.Instr, error) {
	n := c.next()
	op, err := p.lookup(n)
	if err != nil {
		return nil, err
	}
	if op.Class != opcode.Block {
		imm, err := p.immediate(op, n, c)
		if err != nil {
			return nil, err
		}
		return append(out, ast.Instr{Op: op, Imm: imm}), nil
	}

	label := c.optID()
	bt, err := p.blockType(c)
	if err != nil {
		return nil, err
	}
	p.pushLabel(label)
	defer p.popLabel()
	out = append(out, ast.Instr{Op: op, Imm: bt})
	if out, err = p.seq(c, out); err != nil {
		return nil, err
	}
	if op.Code == opcode.OpIf && c.peek() != nil && c.peek().keyword("else") {
		c.next()
		if err := p.closingLabel(c, label); err != nil {
			return nil, err
		}
		out = append(out, ast.Instr{Op: opElse})
		if out, err = p.seq(c, out); err != nil {
			return nil, err
		}
	}
	end := c.next()
	if end == nil {
		return nil, errorf(n, "unexpected end of input, %s without end", n.tok.Text)
	}
	if !end.keyword("end") {
		return nil, errorf(end, "expected end, got %s", end)
	}
	if err := p.closingLabel(c, label); err != nil {
		return nil, err
	}
	return append(out, ast.Instr{Op: opEnd}), nil
}

// closingLabel consumes the optional label repeated after else or end.
func (p *Parser) closingLabel(c *cursor, label string) error {
	n := c.peek()
	if n == nil || !n.is(token.ID) {
		return nil
	}
	if n.tok.Text != label {
		return errorf(n, "mismatched label %s, expected %q", n.tok.Text, label)
	}
	c.next()
	return nil
}

// folded parses one parenthesized instruction. Operands are emitted
// before the instruction itself.
func (p *Parser) folded(n *node, out []ast.Instr) ([]ast.Instr, error) {
	if len(n.list) == 0 {
		return nil, errorf(n, "empty instruction")
	}
	op, err := p.lookup(n.list[0])
	if err != nil {
		return nil, err
	}
	c := within(n)
	if op.Class != opcode.Block {
		imm, err := p.immediate(op, n.list[0], c)
		if err != nil {
			return nil, err
		}
		for !c.done() {
			operand := c.next()
			if !operand.isList {
				return nil, errorf(operand, "unexpected %s in folded %s", operand, n.head())
			}
			if out, err = p.folded(operand, out); err != nil {
				return nil, err
			}
		}
		return append(out, ast.Instr{Op: op, Imm: imm}), nil
	}

	label := c.optID()
	bt, err := p.blockType(c)
	if err != nil {
		return nil, err
	}
	if op.Code != opcode.OpIf {
		p.pushLabel(label)
		defer p.popLabel()
		out = append(out, ast.Instr{Op: op, Imm: bt})
		if out, err = p.seq(c, out); err != nil {
			return nil, err
		}
		if !c.done() {
			return nil, errorf(c.peek(), "unexpected %s in %s", c.peek(), n.head())
		}
		return append(out, ast.Instr{Op: opEnd}), nil
	}

	for !c.done() && !c.peekList("then") {
		cond := c.next()
		if !cond.isList {
			return nil, errorf(cond, "unexpected %s in if condition", cond)
		}
		if out, err = p.folded(cond, out); err != nil {
			return nil, err
		}
	}
	then := c.next()
	if then == nil {
		return nil, errorf(n, "if without then")
	}
	p.pushLabel(label)
	defer p.popLabel()
	out = append(out, ast.Instr{Op: op, Imm: bt})
	if out, err = p.arm(then, out); err != nil {
		return nil, err
	}
	if c.peekList("else") {
		out = append(out, ast.Instr{Op: opElse})
		if out, err = p.arm(c.next(), out); err != nil {
			return nil, err
		}
	}
	if !c.done() {
		return nil, errorf(c.peek(), "unexpected %s after if arms", c.peek())
	}
	return append(out, ast.Instr{Op: opEnd}), nil
}

// arm parses the body of a (then ...) or (else ...) list.
func (p *Parser) arm(n *node, out []ast.Instr) ([]ast.Instr, error) {
	c := within(n)
	out, err := p.seq(c, out)
	if err != nil {
		return nil, err
	}
	if !c.done() {
		return nil, errorf(c.peek(), "unexpected %s in %s", c.peek(), n.head())
	}
	return out, nil
}

// blockType reads an optional type use. A signature with no params and at
// most one result uses the single-byte form.
func (p *Parser) blockType(c *cursor) (ast.BlockType, error) {
	if !c.peekList("type") && !c.peekList("param") && !c.peekList("result") {
		return ast.BlockType{TypeIdx: -1, Simple: ast.EmptyBlock}, nil
	}
	if !c.peekList("type") {
		start := c.pos
		ft, _, err := p.funcSig(c)
		if err != nil {
			return ast.BlockType{}, err
		}
		if len(ft.Params) == 0 && len(ft.Results) <= 1 {
			if len(ft.Results) == 0 {
				return ast.BlockType{TypeIdx: -1, Simple: ast.EmptyBlock}, nil
			}
			return ast.BlockType{TypeIdx: -1, Simple: byte(ft.Results[0])}, nil
		}
		c.pos = start
	}
	idx, names, err := p.typeUse(c)
	if err != nil {
		return ast.BlockType{}, err
	}
	for _, name := range names {
		if name != "" {
			return ast.BlockType{}, fmt.Errorf("block params cannot be named")
		}
	}
	return ast.BlockType{TypeIdx: int64(idx)}, nil
}

// immediate reads the immediates op takes from c.
func (p *Parser) immediate(op opcode.Op, at *node, c *cursor) (any, error) {
	switch op.Class {
	case opcode.Plain, opcode.Prefix:
		return nil, nil
	case opcode.Local:
		return p.locals.resolve(p.operand(at, c))
	case opcode.Global:
		return p.globals.resolve(p.operand(at, c))
	case opcode.Func:
		return p.funcs.resolve(p.operand(at, c))
	case opcode.Label:
		return p.resolveLabel(p.operand(at, c))
	case opcode.LabelTable:
		var targets []uint32
		for n := c.peek(); n != nil && (n.is(token.ID) || n.is(token.Number)); n = c.peek() {
			c.next()
			depth, err := p.resolveLabel(n)
			if err != nil {
				return nil, err
			}
			targets = append(targets, depth)
		}
		if len(targets) == 0 {
			return nil, errorf(at, "br_table needs a default label")
		}
		return targets, nil
	case opcode.Memarg:
		return p.memarg(op, c)
	case opcode.MemIdx:
		if n := c.peek(); n != nil && (n.is(token.ID) || n.is(token.Number)) {
			c.next()
			idx, err := p.mems.resolve(n)
			if err != nil {
				return nil, err
			}
			if idx != 0 {
				return nil, unsupportedf(n, "multiple memories")
			}
		}
		return uint32(0), nil
	case opcode.ConstI32:
		v, err := parseInt(p.operand(at, c), 32)
		return int32(v), err
	case opcode.ConstI64:
		return parseInt(p.operand(at, c), 64)
	case opcode.ConstF32:
		v, err := parseFloat(p.operand(at, c), 32)
		return uint32(v), err
	case opcode.ConstF64:
		return parseFloat(p.operand(at, c), 64)
	}
	return nil, errorf(at, "unhandled immediate for %s", at.tok.Text)
}

// operand returns the next atom, or a sentinel carrying at's line when
// the immediate is missing.
func (p *Parser) operand(at *node, c *cursor) *node {
	n := c.peek()
	if n == nil || n.isList {
		return &node{tok: token.Token{Kind: token.LParen, Text: "missing immediate after " + at.tok.Text, Line: at.line()}}
	}
	return c.next()
}

func (p *Parser) memarg(op opcode.Op, c *cursor) (ast.Memarg, error) {
	m := ast.Memarg{Align: op.Align}
	for n := c.peek(); n != nil && n.is(token.Keyword); n = c.peek() {
		key, value, ok := strings.Cut(n.tok.Text, "=")
		if !ok || (key != "offset" && key != "align") {
			break
		}
		c.next()
		v, err := parseU32(&node{tok: token.Token{Kind: token.Number, Text: value, Line: n.line()}})
		if err != nil {
			return m, err
		}
		if key == "offset" {
			m.Offset = v
			continue
		}
		if v == 0 || v&(v-1) != 0 {
			return m, errorf(n, "alignment %d is not a power of two", v)
		}
		m.Align = uint32(bits.TrailingZeros32(v))
		if m.Align > op.Align {
			return m, errorf(n, "alignment %d exceeds natural alignment", v)
		}
	}
	return m, nil
}
