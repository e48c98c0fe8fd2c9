package linker

import (
	"context"
	"sort"

	"github.com/tetratelabs/wazero/api"
)

// FuncDef defines a host function
type FuncDef struct {
	Name        string
	Handler     api.GoModuleFunc
	ParamTypes  []api.ValueType
	ResultTypes []api.ValueType
}

// Call invokes the handler against mod with stack as params and results.
func (f *FuncDef) Call(ctx context.Context, mod api.Module, stack []uint64) {
	f.Handler(ctx, mod, stack)
}

// Table maps import namespace to function name to host definition.
// It is the shape handed to instantiation: one host module per namespace.
type Table map[string]map[string]*FuncDef

// NewTable returns an empty table.
func NewTable() Table {
	return make(Table)
}

// Define registers def under namespace, replacing any definition with the
// same name.
func (t Table) Define(namespace string, def *FuncDef) {
	funcs, ok := t[namespace]
	if !ok {
		funcs = make(map[string]*FuncDef)
		t[namespace] = funcs
	}
	funcs[def.Name] = def
}

// DefineFunc is Define for a handler and its signature.
func (t Table) DefineFunc(namespace, name string, fn api.GoModuleFunc, params, results []api.ValueType) {
	t.Define(namespace, &FuncDef{
		Name:        name,
		Handler:     fn,
		ParamTypes:  params,
		ResultTypes: results,
	})
}

// Lookup returns the definition of namespace#name.
func (t Table) Lookup(namespace, name string) (*FuncDef, bool) {
	def, ok := t[namespace][name]
	return def, ok
}

// Clone returns a copy with fresh maps that shares the FuncDef values.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for ns, funcs := range t {
		copied := make(map[string]*FuncDef, len(funcs))
		for name, def := range funcs {
			copied[name] = def
		}
		out[ns] = copied
	}
	return out
}

// Namespaces returns the namespace names, sorted.
func (t Table) Namespaces() []string {
	names := make([]string, 0, len(t))
	for ns := range t {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

// Len counts function definitions across all namespaces.
func (t Table) Len() int {
	n := 0
	for _, funcs := range t {
		n += len(funcs)
	}
	return n
}

// Each calls fn for every definition, ordered by namespace then name.
func (t Table) Each(fn func(namespace string, def *FuncDef)) {
	for _, ns := range t.Namespaces() {
		funcs := t[ns]
		names := make([]string, 0, len(funcs))
		for name := range funcs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fn(ns, funcs[name])
		}
	}
}
