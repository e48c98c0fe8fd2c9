package wasm

import (
	"errors"
	"fmt"
	"io"

	"github.com/wippyai/wasm-runner/wasm/internal/binary"
)

// Parsing errors returned by ParseModule.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

// ParseModule reads the type, import, function and export sections of a
// binary module. Every other section is skipped by its declared size.
func ParseModule(data []byte) (*Module, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadFixedU32()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	version, err := r.ReadFixedU32()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	m := &Module{}
	var lastSectionOrder int

	for {
		sectionID, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, r.WrapError("section header", err)
		}

		if sectionID != SectionCustom {
			order := sectionOrder(sectionID)
			if order == 0 {
				return nil, fmt.Errorf("unknown section ID: 0x%02x", sectionID)
			}
			if order <= lastSectionOrder {
				return nil, fmt.Errorf("section %d appears out of order", sectionID)
			}
			lastSectionOrder = order
		}

		sectionSize, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}
		sectionData, err := r.ReadBytes(int(sectionSize))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}

		sr := binary.NewReader(sectionData)
		switch sectionID {
		case SectionType:
			if err := parseTypeSection(sr, m); err != nil {
				return nil, fmt.Errorf("type section: %w", err)
			}
		case SectionImport:
			if err := parseImportSection(sr, m); err != nil {
				return nil, fmt.Errorf("import section: %w", err)
			}
		case SectionFunction:
			if err := parseFunctionSection(sr, m); err != nil {
				return nil, fmt.Errorf("function section: %w", err)
			}
		case SectionExport:
			if err := parseExportSection(sr, m); err != nil {
				return nil, fmt.Errorf("export section: %w", err)
			}
		}
	}

	return m, nil
}

func parseTypeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form == tagRec {
			n, err := r.ReadU32()
			if err != nil {
				return err
			}
			for j := uint32(0); j < n; j++ {
				sub, err := r.ReadByte()
				if err != nil {
					return err
				}
				td, err := parseSubType(r, sub)
				if err != nil {
					return err
				}
				m.Types = append(m.Types, td)
			}
			continue
		}
		td, err := parseSubType(r, form)
		if err != nil {
			return err
		}
		m.Types = append(m.Types, td)
	}
	return nil
}

func parseSubType(r *binary.Reader, form byte) (TypeDef, error) {
	if form == tagSub || form == tagSubFin {
		n, err := r.ReadU32()
		if err != nil {
			return TypeDef{}, err
		}
		for i := uint32(0); i < n; i++ {
			if _, err := r.ReadU32(); err != nil {
				return TypeDef{}, err
			}
		}
		if form, err = r.ReadByte(); err != nil {
			return TypeDef{}, err
		}
	}

	switch form {
	case tagFunc:
		params, err := readValueTypes(r)
		if err != nil {
			return TypeDef{}, err
		}
		results, err := readValueTypes(r)
		if err != nil {
			return TypeDef{}, err
		}
		return TypeDef{Func: &FuncType{Params: params, Results: results}}, nil
	case tagStruct:
		n, err := r.ReadU32()
		if err != nil {
			return TypeDef{}, err
		}
		for i := uint32(0); i < n; i++ {
			if err := skipFieldType(r); err != nil {
				return TypeDef{}, err
			}
		}
		return TypeDef{}, nil
	case tagArray:
		return TypeDef{}, skipFieldType(r)
	default:
		return TypeDef{}, fmt.Errorf("invalid type form: 0x%02x", form)
	}
}

func skipFieldType(r *binary.Reader) error {
	tag, err := r.ReadByte()
	if err != nil {
		return err
	}
	if tag != tagPackedI8 && tag != tagPackedI16 {
		if _, err := readValueTypeTag(r, tag); err != nil {
			return err
		}
	}
	_, err = r.ReadByte() // mutability
	return err
}

func readValueTypes(r *binary.Reader) ([]ValueType, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	types := make([]ValueType, count)
	for i := range types {
		tag, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if types[i], err = readValueTypeTag(r, tag); err != nil {
			return nil, err
		}
	}
	return types, nil
}

// readValueTypeTag decodes a value type whose first byte is tag. Typed
// references to func and extern collapse to funcref and externref.
func readValueTypeTag(r *binary.Reader, tag byte) (ValueType, error) {
	if tag != tagRefNull && tag != tagRef {
		return valueTypeFromTag(tag), nil
	}
	ht, err := r.ReadS33()
	if err != nil {
		return ValueUnknown, err
	}
	switch ht {
	case heapFunc:
		return ValueFuncRef, nil
	case heapExtern:
		return ValueExternRef, nil
	default:
		return ValueUnknown, nil
	}
}

func skipLimits(r *binary.Reader) error {
	flags, err := r.ReadByte()
	if err != nil {
		return err
	}
	if err := r.SkipU64(); err != nil {
		return err
	}
	if flags&0x01 != 0 {
		return r.SkipU64()
	}
	return nil
}

func parseImportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		var imp Import
		if imp.Module, err = r.ReadName(); err != nil {
			return err
		}
		if imp.Name, err = r.ReadName(); err != nil {
			return err
		}
		if imp.Kind, err = r.ReadByte(); err != nil {
			return err
		}
		switch imp.Kind {
		case KindFunc:
			if imp.TypeIdx, err = r.ReadU32(); err != nil {
				return err
			}
		case KindTable:
			tag, err := r.ReadByte()
			if err != nil {
				return err
			}
			if _, err := readValueTypeTag(r, tag); err != nil {
				return err
			}
			if err := skipLimits(r); err != nil {
				return err
			}
		case KindMemory:
			if err := skipLimits(r); err != nil {
				return err
			}
		case KindGlobal:
			tag, err := r.ReadByte()
			if err != nil {
				return err
			}
			if _, err := readValueTypeTag(r, tag); err != nil {
				return err
			}
			if _, err := r.ReadByte(); err != nil {
				return err
			}
		case KindTag:
			if _, err := r.ReadByte(); err != nil {
				return err
			}
			if imp.TypeIdx, err = r.ReadU32(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("import %s.%s: invalid kind 0x%02x", imp.Module, imp.Name, imp.Kind)
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Funcs = make([]uint32, count)
	for i := range m.Funcs {
		if m.Funcs[i], err = r.ReadU32(); err != nil {
			return err
		}
	}
	return nil
}

func parseExportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		var exp Export
		if exp.Name, err = r.ReadName(); err != nil {
			return err
		}
		if exp.Kind, err = r.ReadByte(); err != nil {
			return err
		}
		if exp.Index, err = r.ReadU32(); err != nil {
			return err
		}
		m.Exports = append(m.Exports, exp)
	}
	return nil
}
