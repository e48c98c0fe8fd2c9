package invoke

import (
	stderrors "errors"
	"math"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/wasm"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name   string
		params []wasm.ValueType
		raw    []string
		want   []any
	}{
		{
			name:   "i32 and f64",
			params: []wasm.ValueType{wasm.ValueI32, wasm.ValueF64},
			raw:    []string{"42", "3.5"},
			want:   []any{int32(42), 3.5},
		},
		{
			name:   "i64 beyond float precision",
			params: []wasm.ValueType{wasm.ValueI64},
			raw:    []string{"9007199254740993"},
			want:   []any{int64(9007199254740993)},
		},
		{
			name:   "i64 unsigned bit pattern",
			params: []wasm.ValueType{wasm.ValueI64},
			raw:    []string{"18446744073709551615"},
			want:   []any{int64(-1)},
		},
		{
			name:   "i32 prefixed bases",
			params: []wasm.ValueType{wasm.ValueI32, wasm.ValueI32, wasm.ValueI32},
			raw:    []string{"0x10", "-0b11", "0o17"},
			want:   []any{int32(16), int32(-3), int32(15)},
		},
		{
			name:   "leading zero is decimal",
			params: []wasm.ValueType{wasm.ValueI32, wasm.ValueI32, wasm.ValueI64, wasm.ValueI64},
			raw:    []string{"010", "08", "010", "-09"},
			want:   []any{int32(10), int32(8), int64(10), int64(-9)},
		},
		{
			name:   "i32 unsigned bit pattern",
			params: []wasm.ValueType{wasm.ValueI32},
			raw:    []string{"4294967295"},
			want:   []any{int32(-1)},
		},
		{
			name:   "f32",
			params: []wasm.ValueType{wasm.ValueF32},
			raw:    []string{"1.25"},
			want:   []any{float32(1.25)},
		},
		{
			name:   "extra args ignored",
			params: []wasm.ValueType{wasm.ValueI32},
			raw:    []string{"1", "2", "3"},
			want:   []any{int32(1)},
		},
		{
			name: "no params",
			raw:  []string{"x"},
			want: []any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.params, tt.raw)
			if err != nil {
				t.Fatalf("Coerce failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d values, got %d", len(tt.want), len(got))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("arg %d: expected %v (%T), got %v (%T)", i, tt.want[i], tt.want[i], got[i], got[i])
				}
			}
		})
	}
}

func TestCoerce_Errors(t *testing.T) {
	tests := []struct {
		name   string
		params []wasm.ValueType
		raw    []string
		kind   errors.Kind
	}{
		{"not a number", []wasm.ValueType{wasm.ValueI32}, []string{"abc"}, errors.KindArgumentParse},
		{"float for i32", []wasm.ValueType{wasm.ValueI32}, []string{"1.5"}, errors.KindArgumentParse},
		{"i32 overflow", []wasm.ValueType{wasm.ValueI32}, []string{"4294967296"}, errors.KindArgumentParse},
		{"i64 overflow", []wasm.ValueType{wasm.ValueI64}, []string{"18446744073709551616"}, errors.KindArgumentParse},
		{"i64 negative overflow", []wasm.ValueType{wasm.ValueI64}, []string{"-9223372036854775809"}, errors.KindArgumentParse},
		{"bad float", []wasm.ValueType{wasm.ValueF64}, []string{"1.2.3"}, errors.KindArgumentParse},
		{"missing", []wasm.ValueType{wasm.ValueI32, wasm.ValueI32}, []string{"1"}, errors.KindArgumentParse},
		{"funcref", []wasm.ValueType{wasm.ValueFuncRef}, []string{"1"}, errors.KindUnsupportedParamType},
		{"none", []wasm.ValueType{wasm.ValueNone}, nil, errors.KindUnsupportedParamType},
		{"v128", []wasm.ValueType{wasm.ValueI32, wasm.ValueV128}, []string{"1", "2"}, errors.KindUnsupportedParamType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Coerce(tt.params, tt.raw)
			if !errors.IsKind(err, tt.kind) {
				t.Fatalf("Expected %s, got %v", tt.kind, err)
			}
		})
	}
}

func TestCoerce_ErrorNamesArgument(t *testing.T) {
	_, err := Coerce([]wasm.ValueType{wasm.ValueI32, wasm.ValueI64}, []string{"1", "zz"})
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("Expected *errors.Error, got %T", err)
	}
	if e.Value != "zz" {
		t.Fatalf("Expected offending value zz, got %v", e.Value)
	}
}

func TestEncodeParams(t *testing.T) {
	stack, err := EncodeParams([]any{int32(-1), int64(-2), float32(1.5), 2.25})
	if err != nil {
		t.Fatalf("EncodeParams failed: %v", err)
	}
	if stack[0] != uint64(uint32(0xFFFFFFFF)) {
		t.Errorf("i32: got %x", stack[0])
	}
	if stack[1] != 0xFFFFFFFFFFFFFFFE {
		t.Errorf("i64: got %x", stack[1])
	}
	if stack[2] != uint64(math.Float32bits(1.5)) {
		t.Errorf("f32: got %x", stack[2])
	}
	if stack[3] != math.Float64bits(2.25) {
		t.Errorf("f64: got %x", stack[3])
	}

	if _, err := EncodeParams([]any{"nope"}); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("Expected invalid_input, got %v", err)
	}
}

func TestDecodeAndFormatResults(t *testing.T) {
	types := []wasm.ValueType{wasm.ValueI32, wasm.ValueI64, wasm.ValueF32, wasm.ValueF64, wasm.ValueExternRef}
	raw := []uint64{api.EncodeI32(-7), api.EncodeI64(1 << 40), api.EncodeF32(0.5), api.EncodeF64(-2.5), 9}
	got := DecodeResults(types, raw)

	if got[0] != int32(-7) || got[1] != int64(1<<40) || got[2] != float32(0.5) || got[3] != -2.5 || got[4] != uint64(9) {
		t.Fatalf("Unexpected decoded results: %v", got)
	}
	if s := FormatResults(got); s != "-7 1099511627776 0.5 -2.5 9" {
		t.Fatalf("Unexpected formatting: %q", s)
	}
	if s := FormatResults([]any{math.NaN(), math.Inf(-1)}); s != "nan -inf" {
		t.Fatalf("Unexpected formatting: %q", s)
	}
}
