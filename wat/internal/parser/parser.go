// Package parser turns tokens into a module AST.
package parser

import (
	"errors"
	"fmt"

	"github.com/wippyai/wasm-runner/wat/internal/ast"
	"github.com/wippyai/wasm-runner/wat/internal/token"
)

// ErrUnsupported marks valid text that uses a feature this compiler omits.
var ErrUnsupported = errors.New("unsupported")

// space is one index space with its symbolic names.
type space struct {
	names map[string]uint32
	kind  string
	count uint32
}

func newSpace(kind string) *space {
	return &space{kind: kind, names: make(map[string]uint32)}
}

// declare assigns the next index, binding name when given.
func (s *space) declare(name string, line int) (uint32, error) {
	idx := s.count
	s.count++
	if name == "" {
		return idx, nil
	}
	if _, dup := s.names[name]; dup {
		return 0, fmt.Errorf("line %d: duplicate %s %s", line, s.kind, name)
	}
	s.names[name] = idx
	return idx, nil
}

// resolve reads an index atom: a number or a declared name.
func (s *space) resolve(n *node) (uint32, error) {
	if n == nil {
		return 0, fmt.Errorf("expected %s index", s.kind)
	}
	switch {
	case n.is(token.ID):
		idx, ok := s.names[n.tok.Text]
		if !ok {
			return 0, fmt.Errorf("line %d: unknown %s %s", n.line(), s.kind, n.tok.Text)
		}
		return idx, nil
	case n.is(token.Number):
		return parseU32(n)
	default:
		return 0, fmt.Errorf("line %d: expected %s index, got %s", n.line(), s.kind, n)
	}
}

// Parser builds one module.
type Parser struct {
	mod     *ast.Module
	types   *space
	funcs   *space
	mems    *space
	globals *space
	locals  *space
	indexOf map[*node]uint32
	labels  []string
}

// Parse builds a module from tokens.
func Parse(tokens []token.Token) (*ast.Module, error) {
	root, err := tree(tokens)
	if err != nil {
		return nil, err
	}
	if root.head() != "module" {
		return nil, fmt.Errorf("line %d: expected 'module', got %s", root.line(), root)
	}
	p := &Parser{
		mod:     &ast.Module{},
		types:   newSpace("type"),
		funcs:   newSpace("func"),
		mems:    newSpace("memory"),
		globals: newSpace("global"),
		indexOf: make(map[*node]uint32),
	}

	c := within(root)
	c.optID()
	fields := c.items[c.pos:]
	if err := p.declare(fields); err != nil {
		return nil, err
	}
	for _, f := range fields {
		if err := p.define(f); err != nil {
			return nil, err
		}
	}
	return p.mod, nil
}

func unsupportedf(n *node, format string, args ...any) error {
	return fmt.Errorf("line %d: %w: %s", n.line(), ErrUnsupported, fmt.Sprintf(format, args...))
}

func errorf(n *node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", n.line(), fmt.Sprintf(format, args...))
}

func (p *Parser) parseValType(n *node) (ast.ValType, error) {
	if n == nil || !n.is(token.Keyword) {
		if n == nil {
			return 0, fmt.Errorf("expected value type")
		}
		return 0, errorf(n, "expected value type, got %s", n)
	}
	switch n.tok.Text {
	case "i32":
		return ast.I32, nil
	case "i64":
		return ast.I64, nil
	case "f32":
		return ast.F32, nil
	case "f64":
		return ast.F64, nil
	case "v128":
		return ast.V128, nil
	case "funcref":
		return ast.FuncRef, nil
	case "externref":
		return ast.ExternRef, nil
	}
	return 0, errorf(n, "unknown value type %s", n.tok.Text)
}

// valTypes reads every remaining atom of c as a value type.
func (p *Parser) valTypes(c *cursor) ([]ast.ValType, error) {
	var out []ast.ValType
	for !c.done() {
		vt, err := p.parseValType(c.next())
		if err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	return out, nil
}

// typeIndex returns the index of ft, appending it when no type matches.
func (p *Parser) typeIndex(ft ast.FuncType) uint32 {
	for i, t := range p.mod.Types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	p.mod.Types = append(p.mod.Types, ft)
	return uint32(len(p.mod.Types) - 1)
}

func (p *Parser) pushLabel(name string) { p.labels = append(p.labels, name) }

func (p *Parser) popLabel() { p.labels = p.labels[:len(p.labels)-1] }

func (p *Parser) resolveLabel(n *node) (uint32, error) {
	if n == nil {
		return 0, fmt.Errorf("expected label")
	}
	if n.is(token.Number) {
		return parseU32(n)
	}
	if n.is(token.ID) {
		for i := len(p.labels) - 1; i >= 0; i-- {
			if p.labels[i] == n.tok.Text {
				return uint32(len(p.labels) - 1 - i), nil
			}
		}
		return 0, errorf(n, "unknown label %s", n.tok.Text)
	}
	return 0, errorf(n, "expected label, got %s", n)
}
