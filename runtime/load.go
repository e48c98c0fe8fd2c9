package runtime

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/wasmerio/wasmer-go/wasmer"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/wat"
)

// Load reads the module at path. Files ending in .wat or .wast are
// converted from the text format; anything else is taken as a binary.
func Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.InputNotFound(path, err)
		}
		return nil, errors.Load("read "+path, err)
	}

	if !isText(path) {
		return data, nil
	}
	binary, err := compileText(path, string(data))
	if err != nil {
		return nil, errors.ParseFailed("WAT "+path, err)
	}
	Logger().Debug("converted text module",
		zap.String("path", path),
		zap.Int("text_bytes", len(data)),
		zap.Int("binary_bytes", len(binary)))
	return binary, nil
}

// compileText uses the built-in compiler and hands text it does not cover
// to wasmer's assembler.
func compileText(path, text string) ([]byte, error) {
	binary, err := wat.Compile(text)
	if err == nil || !stderrors.Is(err, wat.ErrUnsupported) {
		return binary, err
	}
	Logger().Debug("text module needs full assembler",
		zap.String("path", path),
		zap.Error(err))
	return wasmer.Wat2Wasm(text)
}

func isText(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wat", ".wast":
		return true
	}
	return false
}
