package wat

import (
	"github.com/wippyai/wasm-runner/wat/internal/encoder"
	"github.com/wippyai/wasm-runner/wat/internal/parser"
	"github.com/wippyai/wasm-runner/wat/internal/token"
)

// ErrUnsupported is wrapped by errors for valid text that uses a feature
// outside the compiled subset. Callers may fall back to a full assembler.
var ErrUnsupported = parser.ErrUnsupported

// Compile converts WebAssembly text to binary.
func Compile(source string) ([]byte, error) {
	tokens, err := token.Scan(source)
	if err != nil {
		return nil, err
	}
	mod, err := parser.Parse(tokens)
	if err != nil {
		return nil, err
	}
	return encoder.Encode(mod)
}
