package linker

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/wasm"
	"github.com/wippyai/wasm-runner/wat"
)

var i32 = []api.ValueType{api.ValueTypeI32}

func noop(context.Context, api.Module, []uint64) {}

func TestTable_DefineLookup(t *testing.T) {
	tbl := NewTable()
	tbl.DefineFunc("env", "a", noop, i32, nil)
	tbl.DefineFunc("env", "b", noop, nil, i32)
	tbl.DefineFunc("other", "a", noop, nil, nil)

	if tbl.Len() != 3 {
		t.Fatalf("Expected 3 definitions, got %d", tbl.Len())
	}
	def, ok := tbl.Lookup("env", "b")
	if !ok || def.Name != "b" || len(def.ResultTypes) != 1 {
		t.Fatalf("Unexpected lookup result: %+v %v", def, ok)
	}
	if _, ok := tbl.Lookup("env", "c"); ok {
		t.Fatal("Expected env#c to be missing")
	}
	if _, ok := tbl.Lookup("nope", "a"); ok {
		t.Fatal("Expected nope#a to be missing")
	}

	ns := tbl.Namespaces()
	if len(ns) != 2 || ns[0] != "env" || ns[1] != "other" {
		t.Fatalf("Expected [env other], got %v", ns)
	}

	var order []string
	tbl.Each(func(ns string, def *FuncDef) {
		order = append(order, ns+"#"+def.Name)
	})
	want := []string{"env#a", "env#b", "other#a"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Expected order %v, got %v", want, order)
		}
	}
}

func TestTable_CloneIsShallow(t *testing.T) {
	tbl := NewTable()
	tbl.DefineFunc("env", "a", noop, nil, nil)

	clone := tbl.Clone()
	orig, _ := tbl.Lookup("env", "a")
	copied, _ := clone.Lookup("env", "a")
	if orig != copied {
		t.Fatal("Expected clone to share FuncDef values")
	}

	clone.DefineFunc("env", "b", noop, nil, nil)
	if _, ok := tbl.Lookup("env", "b"); ok {
		t.Fatal("Defining on the clone must not affect the original")
	}
}

func TestStubMissing_TrapsWithMissingImport(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)

	bin, err := wat.Compile(`(module
  (import "env" "present" (func $present (result i32)))
  (import "env" "missing" (func $missing (result i32)))
  (func (export "present") (result i32) (call $present))
  (func (export "missing") (result i32) (call $missing)))`)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	mod, err := wasm.ParseModule(bin)
	if err != nil {
		t.Fatalf("ParseModule failed: %v", err)
	}

	tbl := NewTable()
	tbl.DefineFunc("env", "present", func(_ context.Context, _ api.Module, stack []uint64) {
		stack[0] = 42
	}, nil, i32)

	stubbed := StubMissing(tbl, mod.FuncImports())
	if len(stubbed) != 1 || stubbed[0] != "env#missing" {
		t.Fatalf("Expected [env#missing], got %v", stubbed)
	}

	if _, err := Instantiate(ctx, rt, tbl); err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	guest, err := rt.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("guest instantiate failed: %v", err)
	}

	res, err := guest.ExportedFunction("present").Call(ctx)
	if err != nil {
		t.Fatalf("present call failed: %v", err)
	}
	if res[0] != 42 {
		t.Fatalf("Expected 42, got %d", res[0])
	}

	_, err = guest.ExportedFunction("missing").Call(ctx)
	if err == nil {
		t.Fatal("Expected trap calling a stubbed import")
	}
	if !errors.IsKind(err, errors.KindMissingImport) {
		t.Fatalf("Expected missing_import, got %v", err)
	}
}

func TestStubMissing_SkipsUnrepresentable(t *testing.T) {
	tbl := NewTable()
	stubbed := StubMissing(tbl, []wasm.FuncImport{
		{Module: "env", Name: "vec", Params: []wasm.ValueType{wasm.ValueV128}},
	})
	if len(stubbed) != 0 || tbl.Len() != 0 {
		t.Fatalf("Expected nothing stubbed, got %v", stubbed)
	}
}

func TestValueTypes(t *testing.T) {
	got, ok := ValueTypes([]wasm.ValueType{wasm.ValueI32, wasm.ValueI64, wasm.ValueF32, wasm.ValueF64})
	if !ok {
		t.Fatal("Expected numeric types to convert")
	}
	want := []api.ValueType{api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
	if _, ok := ValueTypes([]wasm.ValueType{wasm.ValueUnknown}); ok {
		t.Fatal("Expected unknown to be rejected")
	}
}

func TestInstantiate_DuplicateModuleFails(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)

	tbl := NewTable()
	tbl.DefineFunc("env", "a", noop, nil, nil)
	if _, err := Instantiate(ctx, rt, tbl); err != nil {
		t.Fatalf("first Instantiate failed: %v", err)
	}
	_, err := Instantiate(ctx, rt, tbl)
	if !errors.IsKind(err, errors.KindInstantiation) {
		t.Fatalf("Expected instantiation error, got %v", err)
	}
}
