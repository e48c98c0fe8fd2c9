package layout

import (
	"encoding/binary"
	"fmt"

	"github.com/wippyai/wasm-runner/errors"
)

// Record is the decoded form of a schema instance.
// Unsigned scalars decode to uint64, signed scalars to int64 and nested
// fields to Record. Encode accepts any Go integer type for scalars.
type Record map[string]any

type scalarCodec struct {
	put func(b []byte, v uint64)
	get func(b []byte) uint64
}

// scalarCodecs is indexed by [ByteOrder][widthSlot(width)].
var scalarCodecs = [2][4]scalarCodec{
	LittleEndian: {
		{
			put: func(b []byte, v uint64) { b[0] = byte(v) },
			get: func(b []byte) uint64 { return uint64(b[0]) },
		},
		{
			put: func(b []byte, v uint64) { binary.LittleEndian.PutUint16(b, uint16(v)) },
			get: func(b []byte) uint64 { return uint64(binary.LittleEndian.Uint16(b)) },
		},
		{
			put: func(b []byte, v uint64) { binary.LittleEndian.PutUint32(b, uint32(v)) },
			get: func(b []byte) uint64 { return uint64(binary.LittleEndian.Uint32(b)) },
		},
		{
			put: func(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) },
			get: func(b []byte) uint64 { return binary.LittleEndian.Uint64(b) },
		},
	},
	BigEndian: {
		{
			put: func(b []byte, v uint64) { b[0] = byte(v) },
			get: func(b []byte) uint64 { return uint64(b[0]) },
		},
		{
			put: func(b []byte, v uint64) { binary.BigEndian.PutUint16(b, uint16(v)) },
			get: func(b []byte) uint64 { return uint64(binary.BigEndian.Uint16(b)) },
		},
		{
			put: func(b []byte, v uint64) { binary.BigEndian.PutUint32(b, uint32(v)) },
			get: func(b []byte) uint64 { return uint64(binary.BigEndian.Uint32(b)) },
		},
		{
			put: func(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) },
			get: func(b []byte) uint64 { return binary.BigEndian.Uint64(b) },
		},
	},
}

func widthSlot(width uint32) int {
	switch width {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	default:
		return 3
	}
}

func codecOf(f Field) scalarCodec {
	return scalarCodecs[f.Order][widthSlot(f.Width)]
}

// Encode lays out v according to the schema.
func (s *Schema) Encode(v Record) ([]byte, error) {
	buf := make([]byte, s.size)
	if err := s.encode(buf, v, []string{s.name}); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeInto writes v into dst, which must be exactly Size() bytes.
func (s *Schema) EncodeInto(dst []byte, v Record) error {
	if uint32(len(dst)) != s.size {
		return errors.LengthMismatch(errors.PhaseEncode, s.name, len(dst), int(s.size))
	}
	return s.encode(dst, v, []string{s.name})
}

func (s *Schema) encode(dst []byte, v Record, path []string) error {
	for i, f := range s.fields {
		off := s.offsets[i]
		span := dst[off : off+f.Width]

		switch f.Kind {
		case KindReserved:
			clear(span)

		case KindScalar:
			raw, ok := v[f.Name]
			if !ok {
				return errors.ShapeMismatch(appendPath(path, f.Name), "missing field %q", f.Name)
			}
			bits, err := scalarBits(raw, f, appendPath(path, f.Name))
			if err != nil {
				return err
			}
			codecOf(f).put(span, bits)

		case KindNested:
			raw, ok := v[f.Name]
			if !ok {
				return errors.ShapeMismatch(appendPath(path, f.Name), "missing field %q", f.Name)
			}
			var nested Record
			switch r := raw.(type) {
			case Record:
				nested = r
			case map[string]any:
				nested = r
			default:
				return errors.ShapeMismatch(appendPath(path, f.Name), "expected record, got %T", raw)
			}
			if err := f.Nested.encode(span, nested, appendPath(path, f.Name)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Decode reads a record from b, which must be exactly Size() bytes.
// Reserved spans are skipped.
func (s *Schema) Decode(b []byte) (Record, error) {
	if uint32(len(b)) != s.size {
		return nil, errors.LengthMismatch(errors.PhaseDecode, s.name, len(b), int(s.size))
	}
	return s.decode(b), nil
}

func (s *Schema) decode(b []byte) Record {
	out := make(Record, len(s.fields))
	for i, f := range s.fields {
		off := s.offsets[i]
		span := b[off : off+f.Width]

		switch f.Kind {
		case KindScalar:
			bits := codecOf(f).get(span)
			if f.Signed {
				shift := 64 - 8*f.Width
				out[f.Name] = int64(bits<<shift) >> shift
			} else {
				out[f.Name] = bits
			}
		case KindNested:
			out[f.Name] = f.Nested.decode(span)
		}
	}
	return out
}

// scalarBits converts an integer value to its width-truncated bit pattern,
// rejecting values outside the field's range.
func scalarBits(raw any, f Field, path []string) (uint64, error) {
	var (
		u        uint64
		s        int64
		negative bool
		isSigned bool
	)
	switch x := raw.(type) {
	case int:
		s, isSigned = int64(x), true
	case int8:
		s, isSigned = int64(x), true
	case int16:
		s, isSigned = int64(x), true
	case int32:
		s, isSigned = int64(x), true
	case int64:
		s, isSigned = x, true
	case uint:
		u = uint64(x)
	case uint8:
		u = uint64(x)
	case uint16:
		u = uint64(x)
	case uint32:
		u = uint64(x)
	case uint64:
		u = x
	default:
		return 0, errors.ShapeMismatch(path, "expected integer, got %T", raw)
	}

	bits := f.Width * 8
	if isSigned {
		negative = s < 0
		u = uint64(s)
	}

	if f.Signed {
		maxS := uint64(1)<<(bits-1) - 1
		if negative {
			minS := -int64(maxS) - 1
			if s < minS {
				return 0, overflow(raw, f, path)
			}
		} else if u > maxS {
			return 0, overflow(raw, f, path)
		}
	} else {
		if negative {
			return 0, overflow(raw, f, path)
		}
		if bits < 64 && u > uint64(1)<<bits-1 {
			return 0, overflow(raw, f, path)
		}
	}

	if bits < 64 {
		u &= uint64(1)<<bits - 1
	}
	return u, nil
}

func overflow(raw any, f Field, path []string) error {
	prefix := "u"
	if f.Signed {
		prefix = "i"
	}
	return errors.New(errors.PhaseEncode, errors.KindShapeMismatch).
		Path(path...).
		Value(raw).
		Detail("value %v overflows %s%d", raw, prefix, f.Width*8).
		Build()
}

func appendPath(path []string, name string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, name)
}

// String renders the schema as "name{field:u32le@0 ...}" for logs.
func (s *Schema) String() string {
	out := s.name + "{"
	for i, f := range s.fields {
		if i > 0 {
			out += " "
		}
		switch f.Kind {
		case KindReserved:
			out += fmt.Sprintf("_:pad%d@%d", f.Width, s.offsets[i])
		case KindNested:
			out += fmt.Sprintf("%s:%s@%d", f.Name, f.Nested.name, s.offsets[i])
		default:
			sign := "u"
			if f.Signed {
				sign = "i"
			}
			out += fmt.Sprintf("%s:%s%d%s@%d", f.Name, sign, f.Width*8, f.Order, s.offsets[i])
		}
	}
	return out + "}"
}
