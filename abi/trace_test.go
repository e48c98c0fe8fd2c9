package abi

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-runner/linker"
)

func newSink() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

func TestWrap_RecordsResults(t *testing.T) {
	sink, logs := newSink()
	def := &linker.FuncDef{
		Name: "add",
		Handler: func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = stack[0] + stack[1]
		},
		ParamTypes:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		ResultTypes: []api.ValueType{api.ValueTypeI32},
	}

	wrapped := Wrap("env", def, sink)
	if len(wrapped.ParamTypes) != 2 || len(wrapped.ResultTypes) != 1 || wrapped.Name != "add" {
		t.Fatalf("Wrap must keep the signature, got %+v", wrapped)
	}

	stack := []uint64{2, 3}
	wrapped.Handler(context.Background(), nil, stack)
	if stack[0] != 5 {
		t.Fatalf("Expected result 5, got %d", stack[0])
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(entries))
	}
	if entries[0].Level != zap.DebugLevel {
		t.Fatalf("Expected a debug record, got %s", entries[0].Level)
	}
	fields := entries[0].ContextMap()
	if fields["call"] != "env!add" {
		t.Fatalf("Expected call env!add, got %v", fields["call"])
	}
	args, _ := fields["args"].([]any)
	if len(args) != 2 || args[0] != uint64(2) || args[1] != uint64(3) {
		t.Fatalf("Expected args [2 3] captured before the call, got %v", fields["args"])
	}
	results, _ := fields["results"].([]any)
	if len(results) != 1 || results[0] != uint64(5) {
		t.Fatalf("Expected results [5], got %v", fields["results"])
	}
}

func TestWrap_RepanicsSameValue(t *testing.T) {
	sink, logs := newSink()
	exit := sys.NewExitError(3)
	def := &linker.FuncDef{
		Name: "proc_exit",
		Handler: func(context.Context, api.Module, []uint64) {
			panic(exit)
		},
		ParamTypes: []api.ValueType{api.ValueTypeI32},
	}
	wrapped := Wrap("wasi_unstable", def, sink)

	func() {
		defer func() {
			r := recover()
			if r != exit {
				t.Fatalf("Expected the original exit error, got %v", r)
			}
		}()
		wrapped.Handler(context.Background(), nil, []uint64{3})
	}()

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(entries))
	}
	if entries[0].ContextMap()["failure"] != "exit(3)" {
		t.Fatalf("Expected failure exit(3), got %v", entries[0].ContextMap()["failure"])
	}
}

func TestTrace_WrapsEveryFunction(t *testing.T) {
	sink, logs := newSink()
	calls := 0
	fn := func(context.Context, api.Module, []uint64) { calls++ }

	tbl := linker.NewTable()
	tbl.DefineFunc("a", "x", fn, nil, nil)
	tbl.DefineFunc("a", "y", fn, nil, nil)
	tbl.DefineFunc("b", "z", fn, nil, nil)

	traced := Trace(tbl, sink)
	if traced.Len() != 3 {
		t.Fatalf("Expected 3 functions, got %d", traced.Len())
	}
	traced.Each(func(_ string, def *linker.FuncDef) {
		def.Handler(context.Background(), nil, nil)
	})
	if calls != 3 || logs.Len() != 3 {
		t.Fatalf("Expected 3 calls and 3 records, got %d and %d", calls, logs.Len())
	}

	orig, _ := tbl.Lookup("a", "x")
	got, _ := traced.Lookup("a", "x")
	if orig == got {
		t.Fatal("Trace must not modify the input table")
	}
}
