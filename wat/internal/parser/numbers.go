package parser

import (
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-runner/wat/internal/token"
)

// splitSign strips an optional sign and the underscores allowed between
// digits.
func splitSign(text string) (string, bool) {
	text = strings.ReplaceAll(text, "_", "")
	switch {
	case strings.HasPrefix(text, "-"):
		return text[1:], true
	case strings.HasPrefix(text, "+"):
		return text[1:], false
	}
	return text, false
}

// magnitude parses an unsigned decimal or 0x-prefixed hex integer.
func magnitude(text string, bits int) (uint64, error) {
	if rest, ok := strings.CutPrefix(text, "0x"); ok {
		return strconv.ParseUint(rest, 16, bits)
	}
	return strconv.ParseUint(text, 10, bits)
}

func parseU32(n *node) (uint32, error) {
	if !n.is(token.Number) {
		return 0, errorf(n, "expected number, got %s", n)
	}
	text := strings.ReplaceAll(n.tok.Text, "_", "")
	v, err := magnitude(text, 32)
	if err != nil {
		return 0, errorf(n, "invalid unsigned integer %s", n.tok.Text)
	}
	return uint32(v), nil
}

// parseInt reads a bits-wide integer. Unsigned literals above the signed
// range wrap to their two's complement value.
func parseInt(n *node, bits int) (int64, error) {
	if !n.is(token.Number) {
		return 0, errorf(n, "expected integer, got %s", n)
	}
	text, neg := splitSign(n.tok.Text)
	mag, err := magnitude(text, bits)
	if err != nil {
		return 0, errorf(n, "invalid i%d literal %s", bits, n.tok.Text)
	}
	if neg {
		if mag > 1<<(bits-1) {
			return 0, errorf(n, "i%d literal %s out of range", bits, n.tok.Text)
		}
		return -int64(mag), nil
	}
	if bits == 32 {
		return int64(int32(uint32(mag))), nil
	}
	return int64(mag), nil
}

// parseFloat returns the IEEE bits of a float literal, widened to uint64
// for f32.
func parseFloat(n *node, bits int) (uint64, error) {
	if !n.is(token.Number) && !n.is(token.Keyword) {
		return 0, errorf(n, "expected float, got %s", n)
	}
	text, neg := splitSign(n.tok.Text)

	expBits, fracBits := 8, 23
	if bits == 64 {
		expBits, fracBits = 11, 52
	}
	sign := uint64(0)
	if neg {
		sign = 1 << (bits - 1)
	}
	expMask := uint64(1)<<expBits - 1
	inf := expMask << fracBits

	switch {
	case text == "inf":
		return sign | inf, nil
	case text == "nan":
		return sign | inf | 1<<(fracBits-1), nil
	case strings.HasPrefix(text, "nan:0x"):
		payload, err := strconv.ParseUint(text[len("nan:0x"):], 16, 64)
		if err != nil || payload == 0 || payload >= 1<<fracBits {
			return 0, errorf(n, "invalid nan payload %s", n.tok.Text)
		}
		return sign | inf | payload, nil
	}

	if strings.HasPrefix(text, "0x") && !strings.ContainsAny(text, "pP") {
		text += "p0"
	}
	v, err := strconv.ParseFloat(text, bits)
	if err != nil {
		return 0, errorf(n, "invalid f%d literal %s", bits, n.tok.Text)
	}
	if neg {
		v = -v
	}
	if bits == 32 {
		return uint64(math.Float32bits(float32(v))), nil
	}
	return math.Float64bits(v), nil
}
