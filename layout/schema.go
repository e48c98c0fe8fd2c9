package layout

import (
	"fmt"

	"github.com/wippyai/wasm-runner/errors"
)

// ByteOrder selects how a scalar field is laid out in memory.
type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

func (o ByteOrder) String() string {
	if o == BigEndian {
		return "be"
	}
	return "le"
}

// FieldKind distinguishes scalar, reserved and nested fields.
type FieldKind uint8

const (
	KindScalar FieldKind = iota
	KindReserved
	KindNested
)

// Field describes one slot of a fixed-layout record.
type Field struct {
	Nested *Schema
	Name   string
	Width  uint32
	Kind   FieldKind
	Signed bool
	Order  ByteOrder
}

// Scalar declares a numeric field.
func Scalar(name string, width uint32, signed bool, order ByteOrder) Field {
	return Field{Name: name, Kind: KindScalar, Width: width, Signed: signed, Order: order}
}

// U8 declares an unsigned little-endian 8-bit field.
func U8(name string) Field { return Scalar(name, 1, false, LittleEndian) }

// U16 declares an unsigned little-endian 16-bit field.
func U16(name string) Field { return Scalar(name, 2, false, LittleEndian) }

// U32 declares an unsigned little-endian 32-bit field.
func U32(name string) Field { return Scalar(name, 4, false, LittleEndian) }

// U64 declares an unsigned little-endian 64-bit field.
func U64(name string) Field { return Scalar(name, 8, false, LittleEndian) }

// I32 declares a signed little-endian 32-bit field.
func I32(name string) Field { return Scalar(name, 4, true, LittleEndian) }

// I64 declares a signed little-endian 64-bit field.
func I64(name string) Field { return Scalar(name, 8, true, LittleEndian) }

// Reserved declares an anonymous padding span of width bytes.
func Reserved(width uint32) Field {
	return Field{Kind: KindReserved, Width: width}
}

// Nested declares a field holding another record inline.
func Nested(name string, s *Schema) Field {
	w := uint32(0)
	if s != nil {
		w = s.size
	}
	return Field{Name: name, Kind: KindNested, Width: w, Nested: s}
}

// Schema is an ordered, explicitly padded record layout.
// There is no implicit alignment: the size is the sum of field widths.
type Schema struct {
	name    string
	fields  []Field
	offsets []uint32
	size    uint32
}

// NewSchema validates fields and builds a schema.
func NewSchema(name string, fields ...Field) (*Schema, error) {
	s := &Schema{
		name:    name,
		fields:  make([]Field, len(fields)),
		offsets: make([]uint32, len(fields)),
	}
	copy(s.fields, fields)

	seen := make(map[string]bool, len(fields))
	for i, f := range s.fields {
		switch f.Kind {
		case KindScalar:
			switch f.Width {
			case 1, 2, 4, 8:
			default:
				return nil, errors.InvalidData(errors.PhaseEncode, []string{name, f.Name},
					fmt.Sprintf("scalar width %d not in {1,2,4,8}", f.Width))
			}
			if f.Order != LittleEndian && f.Order != BigEndian {
				return nil, errors.InvalidData(errors.PhaseEncode, []string{name, f.Name},
					fmt.Sprintf("unknown byte order %d", f.Order))
			}
		case KindReserved:
			if f.Width == 0 {
				return nil, errors.InvalidData(errors.PhaseEncode, []string{name},
					fmt.Sprintf("reserved field %d has zero width", i))
			}
		case KindNested:
			if f.Nested == nil {
				return nil, errors.InvalidData(errors.PhaseEncode, []string{name, f.Name}, "nested field without schema")
			}
		default:
			return nil, errors.InvalidData(errors.PhaseEncode, []string{name, f.Name},
				fmt.Sprintf("unknown field kind %d", f.Kind))
		}
		if f.Kind != KindReserved {
			if f.Name == "" {
				return nil, errors.InvalidData(errors.PhaseEncode, []string{name},
					fmt.Sprintf("field %d has no name", i))
			}
			if seen[f.Name] {
				return nil, errors.InvalidData(errors.PhaseEncode, []string{name, f.Name}, "duplicate field name")
			}
			seen[f.Name] = true
		}
		s.offsets[i] = s.size
		s.size += f.Width
	}
	return s, nil
}

// MustSchema is NewSchema for package-level layouts known to be valid.
func MustSchema(name string, fields ...Field) *Schema {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name used in error paths.
func (s *Schema) Name() string { return s.name }

// Size returns the encoded size in bytes.
func (s *Schema) Size() uint32 { return s.size }

// Fields returns a copy of the field list.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Offset returns the byte offset of a named field.
func (s *Schema) Offset(name string) (uint32, bool) {
	for i, f := range s.fields {
		if f.Kind != KindReserved && f.Name == name {
			return s.offsets[i], true
		}
	}
	return 0, false
}
