package wasi

import (
	"strconv"

	"github.com/wippyai/wasm-runner/layout"
)

// Errno is a preview1 error number.
type Errno uint16

const (
	ESUCCESS     Errno = 0
	E2BIG        Errno = 1
	EACCES       Errno = 2
	EAGAIN       Errno = 6
	EBADF        Errno = 8
	EBUSY        Errno = 10
	EEXIST       Errno = 20
	EFAULT       Errno = 21
	EINVAL       Errno = 28
	EIO          Errno = 29
	EISDIR       Errno = 31
	ELOOP        Errno = 32
	ENAMETOOLONG Errno = 37
	ENOENT       Errno = 44
	ENOSPC       Errno = 51
	ENOSYS       Errno = 52
	ENOTDIR      Errno = 54
	ENOTEMPTY    Errno = 55
	ENOTSUP      Errno = 58
	EPERM        Errno = 63
	EROFS        Errno = 69
	ESPIPE       Errno = 70
	EXDEV        Errno = 75
	ENOTCAPABLE  Errno = 76
)

var errnoNames = map[Errno]string{
	ESUCCESS:     "ESUCCESS",
	E2BIG:        "E2BIG",
	EACCES:       "EACCES",
	EAGAIN:       "EAGAIN",
	EBADF:        "EBADF",
	EBUSY:        "EBUSY",
	EEXIST:       "EEXIST",
	EFAULT:       "EFAULT",
	EINVAL:       "EINVAL",
	EIO:          "EIO",
	EISDIR:       "EISDIR",
	ELOOP:        "ELOOP",
	ENAMETOOLONG: "ENAMETOOLONG",
	ENOENT:       "ENOENT",
	ENOSPC:       "ENOSPC",
	ENOSYS:       "ENOSYS",
	ENOTDIR:      "ENOTDIR",
	ENOTEMPTY:    "ENOTEMPTY",
	ENOTSUP:      "ENOTSUP",
	EPERM:        "EPERM",
	EROFS:        "EROFS",
	ESPIPE:       "ESPIPE",
	EXDEV:        "EXDEV",
	ENOTCAPABLE:  "ENOTCAPABLE",
}

func (e Errno) String() string {
	if name, ok := errnoNames[e]; ok {
		return name
	}
	return "errno(" + strconv.FormatUint(uint64(e), 10) + ")"
}

// Filetype is the preview1 file type tag stored in filestat and fdstat.
type Filetype uint8

const (
	FiletypeUnknown Filetype = iota
	FiletypeBlockDevice
	FiletypeCharacterDevice
	FiletypeDirectory
	FiletypeRegularFile
	FiletypeSocketDgram
	FiletypeSocketStream
	FiletypeSymbolicLink
)

// Whence values in stable (snapshot_preview1) order.
const (
	WhenceSet uint32 = 0
	WhenceCur uint32 = 1
	WhenceEnd uint32 = 2
)

// Clock identifiers.
const (
	ClockRealtime uint32 = iota
	ClockMonotonic
	ClockProcessCPUTime
	ClockThreadCPUTime
)

// Lookup and open flags.
const (
	LookupSymlinkFollow uint32 = 1 << 0

	OflagCreat     uint32 = 1 << 0
	OflagDirectory uint32 = 1 << 1
	OflagExcl      uint32 = 1 << 2
	OflagTrunc     uint32 = 1 << 3

	FdflagAppend uint32 = 1 << 0
)

// Rights. Descriptors are granted RightsAll; path_open reads the
// requested read and write rights to pick the open mode.
const (
	RightFdRead  uint64 = 1 << 1
	RightFdWrite uint64 = 1 << 6
	RightsAll    uint64 = 1<<30 - 1
)

// Fdstat is the 24-byte fd_fdstat_get record.
var Fdstat = layout.MustSchema("fdstat",
	layout.U8("filetype"),
	layout.Reserved(1),
	layout.U16("flags"),
	layout.Reserved(4),
	layout.U64("rights_base"),
	layout.U64("rights_inheriting"),
)

// Prestat is the 8-byte fd_prestat_get record for a directory preopen.
var Prestat = layout.MustSchema("prestat",
	layout.U8("tag"),
	layout.Reserved(3),
	layout.U32("name_len"),
)

// IOVec is one scatter/gather entry.
var IOVec = layout.MustSchema("iovec",
	layout.U32("buf"),
	layout.U32("len"),
)
