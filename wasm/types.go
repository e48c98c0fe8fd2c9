package wasm

// ValueType is the closed set of value kinds reported by the introspector.
type ValueType uint8

const (
	ValueUnknown ValueType = iota
	ValueI32
	ValueI64
	ValueF32
	ValueF64
	ValueNone
	ValueFuncRef
	ValueExternRef
	ValueV128
)

var valueTypeNames = [...]string{
	ValueUnknown:   "unknown",
	ValueI32:       "i32",
	ValueI64:       "i64",
	ValueF32:       "f32",
	ValueF64:       "f64",
	ValueNone:      "none",
	ValueFuncRef:   "funcref",
	ValueExternRef: "externref",
	ValueV128:      "v128",
}

func (v ValueType) String() string {
	if int(v) < len(valueTypeNames) {
		return valueTypeNames[v]
	}
	return "unknown"
}

// valueTypeFromTag maps a single-byte type tag. Tags outside the closed
// set decode to ValueUnknown.
func valueTypeFromTag(tag byte) ValueType {
	switch tag {
	case tagI32:
		return ValueI32
	case tagI64:
		return ValueI64
	case tagF32:
		return ValueF32
	case tagF64:
		return ValueF64
	case tagV128:
		return ValueV128
	case tagFuncRef:
		return ValueFuncRef
	case tagExternRef:
		return ValueExternRef
	case tagEmpty:
		return ValueNone
	default:
		return ValueUnknown
	}
}

// FuncType is a function signature from the type section.
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

// TypeDef is one entry of the type index space. Func is nil for GC struct
// and array types.
type TypeDef struct {
	Func *FuncType
}

// Import is a module import. TypeIdx is meaningful for function imports only.
type Import struct {
	Module  string
	Name    string
	Kind    byte
	TypeIdx uint32
}

// Export is a module export.
type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

// FuncImport is a function import with its resolved signature.
type FuncImport struct {
	Module  string
	Name    string
	Params  []ValueType
	Results []ValueType
}

// Module holds the sections of a binary needed for signature introspection.
type Module struct {
	Types   []TypeDef
	Imports []Import
	Funcs   []uint32
	Exports []Export
}

// NumImportedFuncs counts function imports, which occupy the low end of
// the function index space.
func (m *Module) NumImportedFuncs() uint32 {
	var n uint32
	for _, imp := range m.Imports {
		if imp.Kind == KindFunc {
			n++
		}
	}
	return n
}

// ImportNamespaces returns the distinct import module names in first-seen order.
func (m *Module) ImportNamespaces() []string {
	seen := make(map[string]bool, len(m.Imports))
	var out []string
	for _, imp := range m.Imports {
		if !seen[imp.Module] {
			seen[imp.Module] = true
			out = append(out, imp.Module)
		}
	}
	return out
}

// FuncImports returns every function import with its signature.
func (m *Module) FuncImports() []FuncImport {
	var out []FuncImport
	for _, imp := range m.Imports {
		if imp.Kind != KindFunc {
			continue
		}
		fi := FuncImport{Module: imp.Module, Name: imp.Name}
		if ft := m.funcType(imp.TypeIdx); ft != nil {
			fi.Params = ft.Params
			fi.Results = ft.Results
		}
		out = append(out, fi)
	}
	return out
}

func (m *Module) funcType(idx uint32) *FuncType {
	if int(idx) >= len(m.Types) {
		return nil
	}
	return m.Types[idx].Func
}
