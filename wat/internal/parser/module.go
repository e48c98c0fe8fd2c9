package parser

import (
	"fmt"

	"github.com/wippyai/wasm-runner/wat/internal/ast"
	"github.com/wippyai/wasm-runner/wat/internal/token"
)

const pageSize = 65536

// declare assigns every index before any body is parsed, so forward
// references resolve. Imports take the low indices of each space.
func (p *Parser) declare(fields []*node) error {
	for _, f := range fields {
		if f.head() != "type" {
			continue
		}
		if err := p.declareType(f); err != nil {
			return err
		}
	}

	var defs []*node
	for _, f := range fields {
		sp, name, imported, err := p.fieldSpace(f)
		if err != nil {
			return err
		}
		if sp == nil {
			continue
		}
		if !imported {
			defs = append(defs, f)
			continue
		}
		if p.indexOf[f], err = sp.declare(name, f.line()); err != nil {
			return err
		}
	}
	for _, f := range defs {
		sp, name, _, _ := p.fieldSpace(f)
		idx, err := sp.declare(name, f.line())
		if err != nil {
			return err
		}
		p.indexOf[f] = idx
	}
	return nil
}

// fieldSpace returns the index space a field declares into, or nil for
// fields that declare nothing.
func (p *Parser) fieldSpace(f *node) (*space, string, bool, error) {
	switch f.head() {
	case "import":
		if len(f.list) != 4 || !f.list[1].is(token.String) || !f.list[2].is(token.String) {
			return nil, "", false, errorf(f, "malformed import")
		}
		desc := f.list[3]
		sp, err := p.descSpace(desc)
		if err != nil {
			return nil, "", false, err
		}
		return sp, within(desc).optID(), true, nil
	case "func", "memory", "global":
		sp, _ := p.descSpace(f)
		c := within(f)
		name := c.optID()
		for c.peekList("export") {
			c.next()
		}
		return sp, name, c.peekList("import"), nil
	case "type", "export", "start", "data":
		return nil, "", false, nil
	case "table", "elem", "tag", "rec":
		return nil, "", false, unsupportedf(f, "%s field", f.head())
	case "":
		return nil, "", false, errorf(f, "expected module field, got %s", f)
	}
	return nil, "", false, errorf(f, "unknown module field %s", f.head())
}

func (p *Parser) descSpace(desc *node) (*space, error) {
	switch desc.head() {
	case "func":
		return p.funcs, nil
	case "memory":
		return p.mems, nil
	case "global":
		return p.globals, nil
	case "table", "tag":
		return nil, unsupportedf(desc, "%s import", desc.head())
	}
	return nil, errorf(desc, "malformed import descriptor %s", desc)
}

func (p *Parser) declareType(f *node) error {
	c := within(f)
	name := c.optID()
	def := c.next()
	if def == nil || def.head() != "func" {
		if def != nil && def.isList {
			return unsupportedf(def, "%s type", def.head())
		}
		return errorf(f, "expected (func ...) in type definition")
	}
	if !c.done() {
		return errorf(c.peek(), "unexpected %s in type definition", c.peek())
	}
	fc := within(def)
	ft, _, err := p.funcSig(fc)
	if err != nil {
		return err
	}
	if !fc.done() {
		return errorf(fc.peek(), "unexpected %s in func type", fc.peek())
	}
	if _, err := p.types.declare(name, f.line()); err != nil {
		return err
	}
	p.mod.Types = append(p.mod.Types, ft)
	return nil
}

// define parses one field into the module, in text order.
func (p *Parser) define(f *node) error {
	switch f.head() {
	case "type":
		return nil
	case "import":
		return p.defineImport(f)
	case "func":
		return p.defineFunc(f)
	case "memory":
		return p.defineMemory(f)
	case "global":
		return p.defineGlobal(f)
	case "export":
		return p.defineExport(f)
	case "start":
		return p.defineStart(f)
	case "data":
		return p.defineData(f)
	}
	return errorf(f, "unknown module field %s", f.head())
}

func (p *Parser) defineImport(f *node) error {
	mod, name, desc := f.list[1].tok.Text, f.list[2].tok.Text, f.list[3]
	c := within(desc)
	c.optID()
	return p.importDesc(desc.head(), mod, name, c)
}

// importDesc finishes an import whose descriptor body is left in c.
func (p *Parser) importDesc(kind, mod, name string, c *cursor) error {
	imp := ast.Import{Module: mod, Name: name}
	var err error
	switch kind {
	case "func":
		imp.Kind = ast.KindFunc
		imp.TypeIdx, _, err = p.typeUse(c)
	case "memory":
		imp.Kind = ast.KindMemory
		imp.Memory, err = p.limits(c)
	case "global":
		imp.Kind = ast.KindGlobal
		imp.Global, err = p.globalType(c.next())
	}
	if err != nil {
		return err
	}
	if !c.done() {
		return errorf(c.peek(), "unexpected %s in import", c.peek())
	}
	p.mod.Imports = append(p.mod.Imports, imp)
	return nil
}

// inlineExports consumes leading (export "name") abbreviations.
func (p *Parser) inlineExports(c *cursor, kind byte, idx uint32) error {
	for c.peekList("export") {
		n := c.next()
		if len(n.list) != 2 || !n.list[1].is(token.String) {
			return errorf(n, "malformed inline export")
		}
		p.mod.Exports = append(p.mod.Exports, ast.Export{Name: n.list[1].tok.Text, Kind: kind, Idx: idx})
	}
	return nil
}

// inlineImport consumes an (import "m" "n") abbreviation if present.
func (p *Parser) inlineImport(c *cursor) (string, string, bool, error) {
	if !c.peekList("import") {
		return "", "", false, nil
	}
	n := c.next()
	if len(n.list) != 3 || !n.list[1].is(token.String) || !n.list[2].is(token.String) {
		return "", "", false, errorf(n, "malformed inline import")
	}
	return n.list[1].tok.Text, n.list[2].tok.Text, true, nil
}

func (p *Parser) defineFunc(f *node) error {
	c := within(f)
	c.optID()
	if err := p.inlineExports(c, ast.KindFunc, p.indexOf[f]); err != nil {
		return err
	}
	if mod, name, ok, err := p.inlineImport(c); err != nil {
		return err
	} else if ok {
		return p.importDesc("func", mod, name, c)
	}

	typeIdx, names, err := p.typeUse(c)
	if err != nil {
		return err
	}
	p.locals = newSpace("local")
	for _, name := range names {
		if _, err := p.locals.declare(name, f.line()); err != nil {
			return err
		}
	}
	var locals []ast.ValType
	for c.peekList("local") {
		n := c.next()
		lc := within(n)
		if name := lc.optID(); name != "" {
			vt, err := p.parseValType(lc.next())
			if err != nil {
				return err
			}
			if !lc.done() {
				return errorf(n, "named local takes one type")
			}
			if _, err := p.locals.declare(name, n.line()); err != nil {
				return err
			}
			locals = append(locals, vt)
			continue
		}
		vts, err := p.valTypes(lc)
		if err != nil {
			return err
		}
		for range vts {
			p.locals.declare("", n.line())
		}
		locals = append(locals, vts...)
	}

	p.labels = nil
	body, err := p.seq(c, nil)
	if err != nil {
		return err
	}
	if !c.done() {
		return errorf(c.peek(), "unexpected %s", c.peek())
	}
	p.mod.Funcs = append(p.mod.Funcs, ast.Func{TypeIdx: typeIdx, Locals: locals, Body: body})
	return nil
}

// funcSig reads (param ...) and (result ...) lists. Names holds one entry
// per param, empty when anonymous.
func (p *Parser) funcSig(c *cursor) (ast.FuncType, []string, error) {
	var ft ast.FuncType
	var names []string
	for c.peekList("param") {
		n := c.next()
		pc := within(n)
		if name := pc.optID(); name != "" {
			vt, err := p.parseValType(pc.next())
			if err != nil {
				return ft, nil, err
			}
			if !pc.done() {
				return ft, nil, errorf(n, "named param takes one type")
			}
			ft.Params = append(ft.Params, vt)
			names = append(names, name)
			continue
		}
		vts, err := p.valTypes(pc)
		if err != nil {
			return ft, nil, err
		}
		ft.Params = append(ft.Params, vts...)
		names = append(names, make([]string, len(vts))...)
	}
	for c.peekList("result") {
		vts, err := p.valTypes(within(c.next()))
		if err != nil {
			return ft, nil, err
		}
		ft.Results = append(ft.Results, vts...)
	}
	return ft, names, nil
}

// typeUse reads an optional (type idx) followed by an inline signature.
func (p *Parser) typeUse(c *cursor) (uint32, []string, error) {
	var explicit *node
	var idx uint32
	if c.peekList("type") {
		explicit = c.next()
		tc := within(explicit)
		var err error
		if idx, err = p.types.resolve(tc.next()); err != nil {
			return 0, nil, err
		}
		if int(idx) >= len(p.mod.Types) {
			return 0, nil, errorf(explicit, "unknown type %d", idx)
		}
	}
	start := c.pos
	ft, names, err := p.funcSig(c)
	if err != nil {
		return 0, nil, err
	}
	if explicit == nil {
		return p.typeIndex(ft), names, nil
	}
	declared := p.mod.Types[idx]
	if c.pos == start {
		return idx, make([]string, len(declared.Params)), nil
	}
	if !ft.Equal(declared) {
		return 0, nil, errorf(explicit, "inline signature does not match type %d", idx)
	}
	return idx, names, nil
}

func (p *Parser) globalType(n *node) (ast.GlobalType, error) {
	if n == nil {
		return ast.GlobalType{}, fmt.Errorf("expected global type")
	}
	if n.head() == "mut" {
		if len(n.list) != 2 {
			return ast.GlobalType{}, errorf(n, "malformed mut")
		}
		vt, err := p.parseValType(n.list[1])
		return ast.GlobalType{Type: vt, Mutable: true}, err
	}
	vt, err := p.parseValType(n)
	return ast.GlobalType{Type: vt}, err
}

func (p *Parser) limits(c *cursor) (ast.Limits, error) {
	var l ast.Limits
	n := c.next()
	if n != nil && n.keyword("i64") {
		return l, unsupportedf(n, "64-bit memory")
	}
	if n == nil || !n.is(token.Number) {
		return l, fmt.Errorf("expected memory limits")
	}
	var err error
	if l.Min, err = parseU32(n); err != nil {
		return l, err
	}
	if m := c.peek(); m != nil && m.is(token.Number) {
		c.next()
		max, err := parseU32(m)
		if err != nil {
			return l, err
		}
		if max < l.Min {
			return l, errorf(m, "memory max %d below min %d", max, l.Min)
		}
		l.Max = &max
	}
	if s := c.peek(); s != nil && s.keyword("shared") {
		return l, unsupportedf(s, "shared memory")
	}
	return l, nil
}

func (p *Parser) defineMemory(f *node) error {
	idx := p.indexOf[f]
	c := within(f)
	c.optID()
	if err := p.inlineExports(c, ast.KindMemory, idx); err != nil {
		return err
	}
	if mod, name, ok, err := p.inlineImport(c); err != nil {
		return err
	} else if ok {
		return p.importDesc("memory", mod, name, c)
	}
	if idx != 0 {
		return unsupportedf(f, "multiple memories")
	}

	if c.peekList("data") {
		bytes, err := dataBytes(within(c.next()))
		if err != nil {
			return err
		}
		pages := uint32((len(bytes) + pageSize - 1) / pageSize)
		p.mod.Memories = append(p.mod.Memories, ast.Limits{Min: pages, Max: &pages})
		p.mod.Data = append(p.mod.Data, ast.Data{Offset: constOffset(0), Bytes: bytes})
		return nil
	}
	l, err := p.limits(c)
	if err != nil {
		return err
	}
	if !c.done() {
		return errorf(c.peek(), "unexpected %s in memory", c.peek())
	}
	p.mod.Memories = append(p.mod.Memories, l)
	return nil
}

func (p *Parser) defineGlobal(f *node) error {
	c := within(f)
	c.optID()
	if err := p.inlineExports(c, ast.KindGlobal, p.indexOf[f]); err != nil {
		return err
	}
	if mod, name, ok, err := p.inlineImport(c); err != nil {
		return err
	} else if ok {
		return p.importDesc("global", mod, name, c)
	}
	gt, err := p.globalType(c.next())
	if err != nil {
		return err
	}
	p.locals = newSpace("local")
	p.labels = nil
	init, err := p.seq(c, nil)
	if err != nil {
		return err
	}
	if !c.done() {
		return errorf(c.peek(), "unexpected %s", c.peek())
	}
	if len(init) == 0 {
		return errorf(f, "global needs an initializer")
	}
	p.mod.Globals = append(p.mod.Globals, ast.Global{Type: gt, Init: init})
	return nil
}

func (p *Parser) defineExport(f *node) error {
	if len(f.list) != 3 || !f.list[1].is(token.String) || !f.list[2].isList || len(f.list[2].list) != 2 {
		return errorf(f, "malformed export")
	}
	desc := f.list[2]
	exp := ast.Export{Name: f.list[1].tok.Text}
	var sp *space
	switch desc.head() {
	case "func":
		exp.Kind, sp = ast.KindFunc, p.funcs
	case "memory":
		exp.Kind, sp = ast.KindMemory, p.mems
	case "global":
		exp.Kind, sp = ast.KindGlobal, p.globals
	case "table", "tag":
		return unsupportedf(desc, "%s export", desc.head())
	default:
		return errorf(desc, "malformed export descriptor %s", desc)
	}
	var err error
	if exp.Idx, err = sp.resolve(desc.list[1]); err != nil {
		return err
	}
	p.mod.Exports = append(p.mod.Exports, exp)
	return nil
}

func (p *Parser) defineStart(f *node) error {
	if p.mod.Start != nil {
		return errorf(f, "duplicate start function")
	}
	if len(f.list) != 2 {
		return errorf(f, "malformed start")
	}
	idx, err := p.funcs.resolve(f.list[1])
	if err != nil {
		return err
	}
	p.mod.Start = &idx
	return nil
}

func (p *Parser) defineData(f *node) error {
	c := within(f)
	c.optID()
	if c.peekList("memory") {
		n := c.next()
		if len(n.list) != 2 {
			return errorf(n, "malformed memory use")
		}
		idx, err := p.mems.resolve(n.list[1])
		if err != nil {
			return err
		}
		if idx != 0 {
			return unsupportedf(n, "multiple memories")
		}
	}

	p.locals = newSpace("local")
	p.labels = nil
	var offset []ast.Instr
	var err error
	switch n := c.peek(); {
	case n != nil && n.head() == "offset":
		c.next()
		oc := within(n)
		if offset, err = p.seq(oc, nil); err == nil && !oc.done() {
			err = errorf(oc.peek(), "unexpected %s", oc.peek())
		}
	case n != nil && n.isList:
		c.next()
		offset, err = p.folded(n, nil)
	default:
		return unsupportedf(f, "passive data segment")
	}
	if err != nil {
		return err
	}
	bytes, err := dataBytes(c)
	if err != nil {
		return err
	}
	p.mod.Data = append(p.mod.Data, ast.Data{Offset: offset, Bytes: bytes})
	return nil
}

// dataBytes concatenates the remaining string atoms of c.
func dataBytes(c *cursor) ([]byte, error) {
	var out []byte
	for !c.done() {
		n := c.next()
		if !n.is(token.String) {
			return nil, errorf(n, "expected string, got %s", n)
		}
		out = append(out, n.tok.Text...)
	}
	return out, nil
}
