package runtime

import (
	"github.com/wippyai/wasm-runner/abi"
	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/wasm"
)

// Target is the function chosen for explicit invocation.
type Target struct {
	Name      string
	Signature *wasm.FunctionSignature
}

// SelectFunction picks the function to invoke. A requested name must be
// an export, matched exactly. Without a request, a module with no
// capability namespace and exactly one exported function gets that
// function, under its first export name. Otherwise it returns nil and
// the run goes through the capability entry point.
func SelectFunction(requested string, version abi.Version, sigs *wasm.Signatures) (*Target, error) {
	if requested != "" {
		sig, ok := sigs.Lookup(requested)
		if !ok {
			return nil, errors.FunctionNotFound(requested)
		}
		return &Target{Name: requested, Signature: sig}, nil
	}

	if version != abi.VersionNone {
		return nil, nil
	}
	exported := sigs.Exported()
	if len(exported) != 1 {
		return nil, nil
	}
	sig := exported[0]
	return &Target{Name: sig.ExportNames[0], Signature: sig}, nil
}
