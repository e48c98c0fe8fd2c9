package wat

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasm-runner/wasm"
)

// Integration tests for the public Compile API.
// Unit tests are in internal packages.

func TestCompile(t *testing.T) {
	t.Run("empty_module", func(t *testing.T) {
		bin, err := Compile("(module)")
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if !bytes.Equal(bin, []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}) {
			t.Errorf("unexpected bytes % x", bin)
		}
	})

	t.Run("simple_function", func(t *testing.T) {
		bin, err := Compile(`(module
			(func (export "add") (param i32 i32) (result i32)
				(i32.add (local.get 0) (local.get 1))))`)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		want := []byte{
			0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00,
			0x01, 0x07, 0x01, 0x60, 0x02, 0x7F, 0x7F, 0x01, 0x7F,
			0x03, 0x02, 0x01, 0x00,
			0x07, 0x07, 0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00,
			0x0A, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6A, 0x0B,
		}
		if !bytes.Equal(bin, want) {
			t.Errorf("got  % x\nwant % x", bin, want)
		}
	})

	t.Run("flat_and_folded_agree", func(t *testing.T) {
		flat, err := Compile(`(module (func (param $a i32) (result i32)
			local.get $a
			i32.const 1
			i32.add))`)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		folded, err := Compile(`(module (func (param $a i32) (result i32)
			(i32.add (local.get $a) (i32.const 1))))`)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if !bytes.Equal(flat, folded) {
			t.Errorf("flat % x\nfolded % x", flat, folded)
		}
	})

	t.Run("locals_grouped", func(t *testing.T) {
		bin, err := Compile(`(module (func (local i32 i32) (local $x i64) (local i32)))`)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		// three runs: 2 x i32, 1 x i64, 1 x i32
		body := []byte{0x08, 0x03, 0x02, 0x7F, 0x01, 0x7E, 0x01, 0x7F, 0x0B}
		if !bytes.HasSuffix(bin, body) {
			t.Errorf("code body % x not found in % x", body, bin)
		}
	})
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name, wat, wantErr string
	}{
		{"missing_module", "(func)", "expected 'module'"},
		{"unclosed", "(module", "unexpected end"},
		{"unknown_instr", "(module (func (bogus)))", "unknown instruction"},
		{"unknown_type", "(module (func (param bogus)))", "unknown value type"},
		{"unknown_label", "(module (func (block (br $x))))", "unknown label"},
		{"unknown_func", "(module (func call $nope))", "unknown func $nope"},
		{"unknown_local", "(module (func (drop (local.get $v))))", "unknown local $v"},
		{"duplicate_func", "(module (func $f) (func $f))", "duplicate func $f"},
		{"missing_end", "(module (func block nop))", "without end"},
		{"i32_range", "(module (func (drop (i32.const 0x1_0000_0000))))", "invalid i32 literal"},
		{"bad_align", "(module (memory 1) (func (drop (i32.load align=3 (i32.const 0)))))", "not a power of two"},
		{"wide_align", "(module (memory 1) (func (drop (i32.load8_u align=2 (i32.const 0)))))", "exceeds natural alignment"},
		{"type_mismatch", "(module (type $t (func (param i32))) (func (type $t) (param i64)))", "does not match type"},
		{"stray_paren", "(module))", "unexpected"},
		{"line_number", "(module\n\n  (func (bogus)))", "line 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.wat)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q missing %q", err, tt.wantErr)
			}
			if errors.Is(err, ErrUnsupported) {
				t.Errorf("malformed text reported as unsupported: %v", err)
			}
		})
	}
}

func TestCompileUnsupported(t *testing.T) {
	tests := []struct {
		name string
		wat  string
	}{
		{"table", "(module (table 1 funcref))"},
		{"elem", "(module (elem (i32.const 0)))"},
		{"call_indirect", "(module (type $t (func)) (func (call_indirect (type $t) (i32.const 0))))"},
		{"passive_data", `(module (memory 1) (data "abc"))`},
		{"simd", "(module (func (drop (v128.const i32x4 0 0 0 0))))"},
		{"memory64", "(module (memory i64 1))"},
		{"second_memory", "(module (memory 1) (memory 1))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.wat)
			if !errors.Is(err, ErrUnsupported) {
				t.Fatalf("expected ErrUnsupported, got %v", err)
			}
		})
	}
}

// TestCompileAnalyze reads compiled output back through the binary decoder.
func TestCompileAnalyze(t *testing.T) {
	bin, err := Compile(`(module
		(type $pair (func (param i32 i32)))
		(import "env" "log" (func $log (type $pair)))
		(import "env" "mem" (memory 1))
		(func $run (export "run") (export "go") (param i64) (result f64)
			(call $log (i32.const 1) (i32.const 2))
			(f64.const 1.5))
		(global $g (export "g") (mut i32) (i32.const 7))
		(data (i32.const 8) "hi" "\00\ff"))`)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	sigs, m, err := wasm.Analyze(bin)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if got := m.NumImportedFuncs(); got != 1 {
		t.Fatalf("expected 1 imported func, got %d", got)
	}
	run, ok := sigs.Lookup("run")
	if !ok {
		t.Fatal("expected export run")
	}
	if run.Index != 1 {
		t.Errorf("expected run at index 1, got %d", run.Index)
	}
	if got := run.String(); got != "func[1] run,go (i64) -> (f64)" {
		t.Errorf("unexpected signature %s", got)
	}
	if alias, _ := sigs.Lookup("go"); alias != run {
		t.Error("expected go to alias run")
	}
}

func TestCompileRuns(t *testing.T) {
	bin, err := Compile(`(module
		(memory (export "memory") 1)
		(global $base (mut i32) (i32.const 16))
		(data (i32.const 0) "wasm")

		(func $fac (export "fac") (param $n i64) (result i64)
			(if (result i64) (i64.le_u (local.get $n) (i64.const 1))
				(then (i64.const 1))
				(else (i64.mul (local.get $n)
					(call $fac (i64.sub (local.get $n) (i64.const 1)))))))

		(func (export "sum") (param $n i32) (result i32) (local $acc i32)
			block $done
				loop $again
					local.get $n
					i32.eqz
					br_if $done
					local.get $acc
					local.get $n
					i32.add
					local.set $acc
					local.get $n
					i32.const 1
					i32.sub
					local.set $n
					br $again
				end
			end
			local.get $acc)

		(func (export "pick") (param i32) (result i32)
			(block $c (block $b (block $a
				(br_table $a $b $c (local.get 0)))
				(return (i32.const 10)))
				(return (i32.const 20)))
			(i32.const 30))

		(func (export "byte") (param i32) (result i32)
			(i32.load8_u offset=1 (local.get 0)))

		(func (export "fill") (result i32)
			(memory.fill (global.get $base) (i32.const 0xAB) (i32.const 4))
			(i32.load (global.get $base)))

		(func (export "neg") (result i64) (i64.const -9_000_000_000))
		(func (export "half") (result f64) (f64.mul (f64.const 0x1p-1) (f64.const 3)))
		(func (export "nan") (result f32) (f32.const -nan:0x200000)))`)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)
	mod, err := r.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}

	tests := []struct {
		fn   string
		args []uint64
		want uint64
	}{
		{"fac", []uint64{5}, 120},
		{"sum", []uint64{4}, 10},
		{"pick", []uint64{0}, 10},
		{"pick", []uint64{1}, 20},
		{"pick", []uint64{7}, 30},
		{"byte", []uint64{0}, 'a'},
		{"fill", nil, 0xABABABAB},
		{"neg", nil, uint64(0xFFFFFFFDE78EE600)},
		{"half", nil, math.Float64bits(1.5)},
		{"nan", nil, 0xFFA00000},
	}
	for _, tt := range tests {
		res, err := mod.ExportedFunction(tt.fn).Call(ctx, tt.args...)
		if err != nil {
			t.Fatalf("%s%v failed: %v", tt.fn, tt.args, err)
		}
		if res[0] != tt.want {
			t.Errorf("%s%v = %#x, want %#x", tt.fn, tt.args, res[0], tt.want)
		}
	}
}
