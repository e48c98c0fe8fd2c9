package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad    Phase = "load"    // reading and converting the module file
	PhaseParse   Phase = "parse"   // module binary introspection
	PhaseEncode  Phase = "encode"  // record to bytes
	PhaseDecode  Phase = "decode"  // bytes to record
	PhaseABI     Phase = "abi"     // capability namespace handling
	PhaseLinking Phase = "linking" // import table assembly and instantiation
	PhaseInvoke  Phase = "invoke"  // argument coercion and calls
	PhaseHost    Phase = "host"    // host function execution
	PhaseConfig  Phase = "config"  // runner configuration
)

// Kind categorizes the error
type Kind string

const (
	KindInputNotFound        Kind = "input_not_found"
	KindUnsupportedABI       Kind = "unsupported_abi_version"
	KindFunctionNotFound     Kind = "function_not_found"
	KindShapeMismatch        Kind = "shape_mismatch"
	KindLengthMismatch       Kind = "length_mismatch"
	KindArgumentParse        Kind = "argument_parse"
	KindUnsupportedParamType Kind = "unsupported_parameter_type"
	KindInvalidEnum          Kind = "invalid_enum"
	KindInvalidData          Kind = "invalid_data"
	KindInvalidInput         Kind = "invalid_input"
	KindMissingImport        Kind = "missing_import"
	KindInstantiation        Kind = "instantiation"
	KindOutOfBounds          Kind = "out_of_bounds"
	KindTrap                 Kind = "trap"
)

// Error is the structured error type used throughout the runner
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return stderrors.Is(err, &Error{Kind: kind})
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InputNotFound creates an error for a module file that does not exist
func InputNotFound(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInputNotFound,
		Detail: fmt.Sprintf("module file %q not found", path),
		Value:  path,
		Cause:  cause,
	}
}

// UnsupportedABI creates an error for an unrecognized capability namespace
func UnsupportedABI(namespace string) *Error {
	return &Error{
		Phase:  PhaseABI,
		Kind:   KindUnsupportedABI,
		Detail: fmt.Sprintf("unsupported capability namespace %q", namespace),
		Value:  namespace,
	}
}

// FunctionNotFound creates an error for a requested export that does not exist
func FunctionNotFound(name string) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindFunctionNotFound,
		Detail: fmt.Sprintf("function %q not found", name),
		Value:  name,
	}
}

// ShapeMismatch creates a record shape error
func ShapeMismatch(path []string, detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindShapeMismatch,
		Path:   path,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// LengthMismatch creates a byte length error
func LengthMismatch(phase Phase, schema string, got, want int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindLengthMismatch,
		Path:   []string{schema},
		Detail: fmt.Sprintf("got %d bytes, want %d", got, want),
		Value:  got,
	}
}

// ArgumentParse creates an error for a command-line argument that does not parse
func ArgumentParse(index int, raw, valueType string, cause error) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindArgumentParse,
		Path:   []string{fmt.Sprintf("arg%d", index)},
		Detail: fmt.Sprintf("cannot parse %q as %s", raw, valueType),
		Value:  raw,
		Cause:  cause,
	}
}

// UnsupportedParamType creates an error for a parameter type that cannot be coerced
func UnsupportedParamType(index int, valueType string) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindUnsupportedParamType,
		Path:   []string{fmt.Sprintf("arg%d", index)},
		Detail: fmt.Sprintf("parameter type %s cannot be passed from the command line", valueType),
		Value:  valueType,
	}
}

// InvalidEnum creates an invalid enum value error
func InvalidEnum(phase Phase, path []string, value any, enumType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidEnum,
		Path:   path,
		Detail: fmt.Sprintf("invalid enum value %v for %s", value, enumType),
		Value:  value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("range at %d (+%d) is outside guest memory", offset, length),
		Value:  offset,
	}
}

// MissingImport creates an error for a module import that has no host definition
func MissingImport(namespace, name string) *Error {
	return &Error{
		Phase:  PhaseLinking,
		Kind:   KindMissingImport,
		Detail: fmt.Sprintf("no host function for %s#%s", namespace, name),
		Value:  namespace + "#" + name,
	}
}

// Instantiation creates an instantiation error
func Instantiation(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseLinking,
		Kind:   KindInstantiation,
		Detail: "instantiate " + what,
		Cause:  cause,
	}
}

// Trap creates an error for a guest call that did not return normally
func Trap(function string, cause error) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindTrap,
		Detail: "call " + function,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
