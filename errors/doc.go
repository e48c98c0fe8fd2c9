// Package errors provides structured error types for the wasm runner.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries a field path, the offending value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindShapeMismatch).
//		Path("filestat", "nlink").
//		Value(uint64(1) << 40).
//		Detail("value overflows u32").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.FunctionNotFound("double")
//	err := errors.LengthMismatch(errors.PhaseDecode, "filestat", 10, 64)
//
// All errors implement the standard error interface and support errors.Is/As.
// IsKind matches a kind anywhere in a wrapped chain.
package errors
