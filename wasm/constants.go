package wasm

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// Section IDs define the binary identifiers for each module section.
// Sections must appear in increasing order by ID (except custom sections).
const (
	SectionCustom    byte = 0
	SectionType      byte = 1
	SectionImport    byte = 2
	SectionFunction  byte = 3
	SectionTable     byte = 4
	SectionMemory    byte = 5
	SectionGlobal    byte = 6
	SectionExport    byte = 7
	SectionStart     byte = 8
	SectionElement   byte = 9
	SectionCode      byte = 10
	SectionData      byte = 11
	SectionDataCount byte = 12
	SectionTag       byte = 13
)

// sectionOrder returns the canonical position of a non-custom section.
// The tag section sits between memory and global even though its ID is 13.
func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionTag:
		return 6
	case SectionGlobal:
		return 7
	case SectionExport:
		return 8
	case SectionStart:
		return 9
	case SectionElement:
		return 10
	case SectionDataCount:
		return 11
	case SectionCode:
		return 12
	case SectionData:
		return 13
	default:
		return 0
	}
}

// Import and export descriptor kinds.
const (
	KindFunc   byte = 0x00
	KindTable  byte = 0x01
	KindMemory byte = 0x02
	KindGlobal byte = 0x03
	KindTag    byte = 0x04
)

// Binary type tags.
const (
	tagI32       byte = 0x7F
	tagI64       byte = 0x7E
	tagF32       byte = 0x7D
	tagF64       byte = 0x7C
	tagV128      byte = 0x7B
	tagPackedI8  byte = 0x78
	tagPackedI16 byte = 0x77
	tagFuncRef   byte = 0x70
	tagExternRef byte = 0x6F
	tagRefNull   byte = 0x63
	tagRef       byte = 0x64
	tagEmpty     byte = 0x40

	tagFunc   byte = 0x60
	tagStruct byte = 0x5F
	tagArray  byte = 0x5E
	tagSub    byte = 0x50
	tagSubFin byte = 0x4F
	tagRec    byte = 0x4E
)

// Heap types as signed LEB128 values.
const (
	heapFunc   int64 = -0x10
	heapExtern int64 = -0x11
)
