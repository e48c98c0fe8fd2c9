package abi

import (
	"strings"

	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/wasi"
)

// Version is the capability ABI a module was compiled against.
type Version int

const (
	// VersionNone means the module imports no capability namespace.
	VersionNone Version = iota
	// VersionUnstable is wasi_unstable: 56-byte filestat, rotated whence.
	VersionUnstable
	// VersionStable is wasi_snapshot_preview1.
	VersionStable
)

func (v Version) String() string {
	switch v {
	case VersionUnstable:
		return "unstable"
	case VersionStable:
		return "stable"
	default:
		return "none"
	}
}

// Namespace returns the import namespace of v, or "" for VersionNone.
func (v Version) Namespace() string {
	switch v {
	case VersionUnstable:
		return wasi.UnstableNamespace
	case VersionStable:
		return wasi.SnapshotNamespace
	default:
		return ""
	}
}

// Detect selects the ABI version from a module's import namespaces. The
// first recognized capability namespace decides; any other namespace with
// the capability prefix is an UnsupportedABI error.
func Detect(namespaces []string) (Version, error) {
	detected := VersionNone
	for _, ns := range namespaces {
		if !strings.HasPrefix(ns, wasi.NamespacePrefix) {
			continue
		}
		var v Version
		switch ns {
		case wasi.UnstableNamespace:
			v = VersionUnstable
		case wasi.SnapshotNamespace:
			v = VersionStable
		default:
			return VersionNone, errors.UnsupportedABI(ns)
		}
		if detected == VersionNone {
			detected = v
		}
	}
	return detected, nil
}
