package invoke

import (
	stderrors "errors"
	"math/big"
	"strconv"

	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/wasm"
)

var (
	errMissing    = stderrors.New("missing argument")
	errNotInteger = stderrors.New("not an integer literal")
	errRange      = stderrors.New("value out of range")
)

// Coerce converts raw command-line arguments to typed values for params,
// positionally. Extra raw arguments are ignored. The result holds int32,
// int64, float32 or float64 values.
func Coerce(params []wasm.ValueType, raw []string) ([]any, error) {
	typed := make([]any, len(params))
	for i, vt := range params {
		if !Supported(vt) {
			return nil, errors.UnsupportedParamType(i, vt.String())
		}
		if i >= len(raw) {
			return nil, errors.ArgumentParse(i, "", vt.String(), errMissing)
		}
		v, err := coerceOne(vt, raw[i])
		if err != nil {
			return nil, errors.ArgumentParse(i, raw[i], vt.String(), err)
		}
		typed[i] = v
	}
	return typed, nil
}

// Supported reports whether values of vt can be coerced from text.
func Supported(vt wasm.ValueType) bool {
	switch vt {
	case wasm.ValueI32, wasm.ValueI64, wasm.ValueF32, wasm.ValueF64:
		return true
	default:
		return false
	}
}

func coerceOne(vt wasm.ValueType, s string) (any, error) {
	switch vt {
	case wasm.ValueI32:
		return parseI32(s)
	case wasm.ValueI64:
		return parseI64(s)
	case wasm.ValueF32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	default:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

// parseI32 accepts signed values and unsigned values up to 2^32-1, the
// latter taken as the two's complement bit pattern.
func parseI32(s string) (int32, error) {
	base := intBase(s)
	v, err := strconv.ParseInt(s, base, 32)
	if err == nil {
		return int32(v), nil
	}
	if u, uerr := strconv.ParseUint(s, base, 32); uerr == nil {
		return int32(uint32(u)), nil
	}
	return 0, err
}

// parseI64 parses exactly, without a float round trip. Values up to
// 2^64-1 are accepted as the two's complement bit pattern.
func parseI64(s string) (int64, error) {
	n, ok := new(big.Int).SetString(s, intBase(s))
	if !ok {
		return 0, errNotInteger
	}
	switch {
	case n.IsInt64():
		return n.Int64(), nil
	case n.Sign() > 0 && n.IsUint64():
		return int64(n.Uint64()), nil
	default:
		return 0, errRange
	}
}

// intBase returns 0 when s carries a 0x, 0o or 0b prefix after an optional
// sign, and 10 otherwise, so a bare leading zero stays decimal.
func intBase(s string) int {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			return 0
		}
	}
	return 10
}
