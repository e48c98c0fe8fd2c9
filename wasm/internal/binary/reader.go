// Package binary reads the primitive encodings of the module binary format.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

var (
	// ErrOverflow is returned for a LEB128 value longer than its type allows.
	ErrOverflow = errors.New("leb128: overflow")

	errBadName = errors.New("name is not valid UTF-8")
)

// Reader consumes a byte slice front to back.
type Reader struct {
	data []byte
	pos  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// ReadByte returns io.EOF once the input is exhausted.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos == len(r.data) {
		return 0, io.EOF
	}
	r.pos++
	return r.data[r.pos-1], nil
}

// ReadBytes returns the next n bytes, aliasing the input.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, r.at(io.ErrUnexpectedEOF)
	}
	start := r.pos
	r.pos += n
	return r.data[start:r.pos], nil
}

// ReadFixedU32 reads four little-endian bytes, as in the module header.
func (r *Reader) ReadFixedU32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU32 reads an unsigned LEB128 value of at most 5 bytes.
func (r *Reader) ReadU32() (uint32, error) {
	v, err := r.uleb(5)
	return uint32(v), err
}

// SkipU64 consumes an unsigned LEB128 value of at most 10 bytes.
func (r *Reader) SkipU64() error {
	_, err := r.uleb(10)
	return err
}

func (r *Reader) uleb(maxBytes int) (uint64, error) {
	var v uint64
	for i := 0; i < maxBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, r.at(ErrOverflow)
}

// ReadS33 reads the signed LEB128 heap type of a reference type.
func (r *Reader) ReadS33() (int64, error) {
	var v int64
	for i := 0; i < 5; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		shift := 7 * uint(i)
		v |= int64(b&0x7f) << shift
		if b&0x80 == 0 {
			if b&0x40 != 0 {
				v |= -1 << (shift + 7)
			}
			return v, nil
		}
	}
	return 0, r.at(ErrOverflow)
}

// ReadName reads a length-prefixed UTF-8 name.
func (r *Reader) ReadName() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", r.at(errBadName)
	}
	return string(b), nil
}

func (r *Reader) at(err error) error {
	return fmt.Errorf("offset %d: %w", r.pos, err)
}

// ParseError locates a decoding failure inside the module.
type ParseError struct {
	Err      error
	Section  string
	Position int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("wasm: %s at position %d: %v", e.Section, e.Position, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// WrapError attributes err to section at the current offset.
func (r *Reader) WrapError(section string, err error) error {
	return &ParseError{Err: err, Section: section, Position: r.pos}
}
