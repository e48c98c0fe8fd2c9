package invoke

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/wasm"
)

// ToUint64 converts a Go value to its engine stack encoding.
// Supports: all integer types, float64, float32, bool.
func ToUint64(arg any) (uint64, error) {
	switch v := arg.(type) {
	case uint64:
		return v, nil
	case uint32:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint8:
		return uint64(v), nil
	case uint:
		return uint64(v), nil
	case int64:
		return api.EncodeI64(v), nil
	case int32:
		return api.EncodeI32(v), nil
	case int16:
		return api.EncodeI32(int32(v)), nil
	case int8:
		return api.EncodeI32(int32(v)), nil
	case int:
		return api.EncodeI64(int64(v)), nil
	case float64:
		return api.EncodeF64(v), nil
	case float32:
		return api.EncodeF32(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot coerce %T to uint64", arg)
	}
}

// EncodeParams encodes coerced values for a call.
func EncodeParams(typed []any) ([]uint64, error) {
	stack := make([]uint64, len(typed))
	for i, v := range typed {
		u, err := ToUint64(v)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseInvoke, errors.KindInvalidInput, err, fmt.Sprintf("argument %d", i))
		}
		stack[i] = u
	}
	return stack, nil
}

// DecodeResults converts raw results according to their declared types.
// Types without a numeric decoding are returned as raw uint64.
func DecodeResults(results []wasm.ValueType, raw []uint64) []any {
	out := make([]any, len(raw))
	for i, r := range raw {
		var vt wasm.ValueType
		if i < len(results) {
			vt = results[i]
		}
		switch vt {
		case wasm.ValueI32:
			out[i] = api.DecodeI32(r)
		case wasm.ValueI64:
			out[i] = int64(r)
		case wasm.ValueF32:
			out[i] = api.DecodeF32(r)
		case wasm.ValueF64:
			out[i] = api.DecodeF64(r)
		default:
			out[i] = r
		}
	}
	return out
}

// FormatResults renders decoded results on one line, space separated.
func FormatResults(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case float32:
			parts[i] = formatFloat(float64(x), 32)
		case float64:
			parts[i] = formatFloat(x, 64)
		default:
			parts[i] = fmt.Sprint(x)
		}
	}
	return strings.Join(parts, " ")
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}
