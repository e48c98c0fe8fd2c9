package wasm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wippyai/wasm-runner/errors"
)

// FunctionSignature describes one entry of the function index space.
type FunctionSignature struct {
	ImportModule string
	ImportName   string
	ExportNames  []string
	Params       []ValueType
	Results      []ValueType
	Index        uint32
	Imported     bool
}

func (s *FunctionSignature) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "func[%d]", s.Index)
	if s.Imported {
		fmt.Fprintf(&b, " <%s#%s>", s.ImportModule, s.ImportName)
	}
	if len(s.ExportNames) > 0 {
		fmt.Fprintf(&b, " %s", strings.Join(s.ExportNames, ","))
	}
	b.WriteString(" (")
	b.WriteString(joinTypes(s.Params))
	b.WriteString(") -> (")
	b.WriteString(joinTypes(s.Results))
	b.WriteString(")")
	return b.String()
}

func joinTypes(types []ValueType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// Signatures is the function signature table of a module. Every name in
// ByName points at the same FunctionSignature held in ByIndex.
type Signatures struct {
	ByName  map[string]*FunctionSignature
	ByIndex []*FunctionSignature
}

// Lookup finds an exported function by its exact name.
func (s *Signatures) Lookup(name string) (*FunctionSignature, bool) {
	sig, ok := s.ByName[name]
	return sig, ok
}

// ExportNames returns every exported function name, sorted.
func (s *Signatures) ExportNames() []string {
	names := make([]string, 0, len(s.ByName))
	for name := range s.ByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exported returns the distinct exported functions in index order.
func (s *Signatures) Exported() []*FunctionSignature {
	var out []*FunctionSignature
	for _, sig := range s.ByIndex {
		if len(sig.ExportNames) > 0 {
			out = append(out, sig)
		}
	}
	return out
}

// Analyze parses binary and builds its signature table.
func Analyze(binary []byte) (*Signatures, *Module, error) {
	m, err := ParseModule(binary)
	if err != nil {
		return nil, nil, errors.ParseFailed("module", err)
	}
	sigs, err := m.Signatures()
	if err != nil {
		return nil, nil, err
	}
	return sigs, m, nil
}

// Signatures builds the signature table of m: imported functions take the
// low indices, then defined functions in declaration order.
func (m *Module) Signatures() (*Signatures, error) {
	sigs := &Signatures{
		ByName:  make(map[string]*FunctionSignature),
		ByIndex: make([]*FunctionSignature, 0, int(m.NumImportedFuncs())+len(m.Funcs)),
	}

	for _, imp := range m.Imports {
		if imp.Kind != KindFunc {
			continue
		}
		ft := m.funcType(imp.TypeIdx)
		if ft == nil {
			return nil, errors.InvalidData(errors.PhaseParse, []string{imp.Module, imp.Name},
				fmt.Sprintf("import references missing function type %d", imp.TypeIdx))
		}
		sigs.ByIndex = append(sigs.ByIndex, &FunctionSignature{
			Index:        uint32(len(sigs.ByIndex)),
			Imported:     true,
			ImportModule: imp.Module,
			ImportName:   imp.Name,
			Params:       ft.Params,
			Results:      ft.Results,
		})
	}

	for i, typeIdx := range m.Funcs {
		ft := m.funcType(typeIdx)
		if ft == nil {
			return nil, errors.InvalidData(errors.PhaseParse, []string{fmt.Sprintf("func[%d]", i)},
				fmt.Sprintf("references missing function type %d", typeIdx))
		}
		sigs.ByIndex = append(sigs.ByIndex, &FunctionSignature{
			Index:   uint32(len(sigs.ByIndex)),
			Params:  ft.Params,
			Results: ft.Results,
		})
	}

	for _, exp := range m.Exports {
		if exp.Kind != KindFunc {
			continue
		}
		if int(exp.Index) >= len(sigs.ByIndex) {
			return nil, errors.InvalidData(errors.PhaseParse, []string{exp.Name},
				fmt.Sprintf("export references function %d of %d", exp.Index, len(sigs.ByIndex)))
		}
		sig := sigs.ByIndex[exp.Index]
		sig.ExportNames = append(sig.ExportNames, exp.Name)
		sigs.ByName[exp.Name] = sig
	}

	return sigs, nil
}
