package abi

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/linker"
	"github.com/wippyai/wasm-runner/wasi"
	"github.com/wippyai/wasm-runner/wat"
)

var sentinel = []byte{0xDE, 0xAD, 0xBE, 0xEF, 0xCA, 0xFE, 0xBA, 0xBE}

var testStat = wasi.Filestat{
	Dev:      7,
	Ino:      99,
	Filetype: wasi.FiletypeRegularFile,
	Nlink:    0x0000000100000002,
	Size:     1234,
	Atim:     11,
	Mtim:     22,
	Ctim:     33,
}

func newModule(t *testing.T) api.Module {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	t.Cleanup(func() { rt.Close(ctx) })
	bin, err := wat.Compile("(module (memory 1))")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	mod, err := rt.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate failed: %v", err)
	}
	return mod
}

// stableFilestat writes testStat at stack[bufParam] and returns errno.
func stableFilestat(name string, bufParam int, errno wasi.Errno) *linker.FuncDef {
	return &linker.FuncDef{
		Name: name,
		Handler: func(_ context.Context, mod api.Module, stack []uint64) {
			buf := uint32(stack[bufParam])
			if errno == wasi.ESUCCESS {
				region, ok := mod.Memory().Read(buf, wasi.StableFilestatSize)
				if !ok {
					stack[0] = uint64(wasi.EFAULT)
					return
				}
				if err := wasi.StableFilestat.EncodeInto(region, testStat.Record()); err != nil {
					panic(err)
				}
			} else {
				// A failing stable call may still scribble over the buffer.
				mod.Memory().Write(buf+56, []byte{1, 1, 1, 1, 1, 1, 1, 1})
			}
			stack[0] = uint64(errno)
		},
		ParamTypes:  make([]api.ValueType, bufParam+1),
		ResultTypes: []api.ValueType{api.ValueTypeI32},
	}
}

func TestStatusShim_PreservesTrailingBytes(t *testing.T) {
	tests := []struct {
		name     string
		bufParam int
	}{
		{"fd_filestat_get", fdFilestatBufParam},
		{"path_filestat_get", pathFilestatBufParam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := newModule(t)
			const buf = 1024
			mod.Memory().Write(buf+56, sentinel)

			shim := StatusShim(stableFilestat(tt.name, tt.bufParam, wasi.ESUCCESS), tt.bufParam, nil)
			stack := make([]uint64, tt.bufParam+1)
			stack[tt.bufParam] = buf
			shim.Handler(context.Background(), mod, stack)

			if wasi.Errno(stack[0]) != wasi.ESUCCESS {
				t.Fatalf("Expected ESUCCESS, got %v", wasi.Errno(stack[0]))
			}
			tail, _ := mod.Memory().Read(buf+56, 8)
			if !bytes.Equal(tail, sentinel) {
				t.Fatalf("Expected trailing bytes preserved, got %x", tail)
			}

			region, _ := mod.Memory().Read(buf, wasi.UnstableFilestatSize)
			rec, err := wasi.UnstableFilestat.Decode(region)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			got, err := wasi.FilestatFromRecord(rec)
			if err != nil {
				t.Fatal(err)
			}
			want := testStat
			want.Nlink = 2
			if got != want {
				t.Fatalf("Expected %+v, got %+v", want, got)
			}
			if binary.LittleEndian.Uint32(region[20:]) != 2 {
				t.Fatalf("Expected nlink low bits at offset 20, got %x", region[20:24])
			}
		})
	}
}

func TestStatusShim_ErrorSkipsRelayout(t *testing.T) {
	mod := newModule(t)
	const buf = 2048
	mod.Memory().Write(buf+56, sentinel)

	shim := StatusShim(stableFilestat("fd_filestat_get", 1, wasi.EBADF), 1, nil)
	stack := []uint64{3, buf}
	shim.Handler(context.Background(), mod, stack)

	if wasi.Errno(stack[0]) != wasi.EBADF {
		t.Fatalf("Expected EBADF passed through, got %v", wasi.Errno(stack[0]))
	}
	tail, _ := mod.Memory().Read(buf+56, 8)
	if !bytes.Equal(tail, sentinel) {
		t.Fatalf("Expected trailing bytes restored, got %x", tail)
	}
}

func TestStatusShim_BufferAtEndOfMemory(t *testing.T) {
	mod := newModule(t)
	buf := mod.Memory().Size() - 60

	shim := StatusShim(stableFilestat("fd_filestat_get", 1, wasi.ESUCCESS), 1, nil)
	stack := []uint64{3, uint64(buf)}
	shim.Handler(context.Background(), mod, stack)

	if wasi.Errno(stack[0]) != wasi.EFAULT {
		t.Fatalf("Expected EFAULT from stable function, got %v", wasi.Errno(stack[0]))
	}
}

func TestStatusShim_FailedRelayoutRestoresTail(t *testing.T) {
	mod := newModule(t)
	buf := mod.Memory().Size() - 60
	mod.Memory().Write(buf+56, sentinel[:4])

	// Reports success without room for a 64-byte record.
	lying := &linker.FuncDef{
		Name: "fd_filestat_get",
		Handler: func(_ context.Context, mod api.Module, stack []uint64) {
			mod.Memory().Write(uint32(stack[1])+56, []byte{1, 1, 1, 1})
			stack[0] = uint64(wasi.ESUCCESS)
		},
		ParamTypes:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		ResultTypes: []api.ValueType{api.ValueTypeI32},
	}

	shim := StatusShim(lying, 1, nil)
	func() {
		defer func() {
			r := recover()
			err, _ := r.(error)
			if !errors.IsKind(err, errors.KindOutOfBounds) {
				t.Fatalf("Expected out_of_bounds panic, got %v", r)
			}
		}()
		shim.Handler(context.Background(), mod, []uint64{3, uint64(buf)})
	}()

	tail, _ := mod.Memory().Read(buf+56, 4)
	if !bytes.Equal(tail, sentinel[:4]) {
		t.Fatalf("Expected trailing bytes restored after failure, got %x", tail)
	}
}

func TestRelayout_ShortRegion(t *testing.T) {
	err := Relayout(make([]byte, 56))
	if !errors.IsKind(err, errors.KindLengthMismatch) {
		t.Fatalf("Expected length_mismatch, got %v", err)
	}
}

func TestWhence_Bijection(t *testing.T) {
	want := map[uint32]uint32{0: 1, 1: 2, 2: 0}
	for u, s := range want {
		got, err := WhenceToStable(u)
		if err != nil || got != s {
			t.Fatalf("WhenceToStable(%d): expected %d, got %d (%v)", u, s, got, err)
		}
		back, err := WhenceToUnstable(got)
		if err != nil || back != u {
			t.Fatalf("WhenceToUnstable(%d): expected %d, got %d (%v)", got, u, back, err)
		}
	}
}

func TestWhence_Invalid(t *testing.T) {
	for _, w := range []uint32{3, 4, 0xFFFFFFFF} {
		if _, err := WhenceToStable(w); !errors.IsKind(err, errors.KindInvalidEnum) {
			t.Fatalf("WhenceToStable(%d): expected invalid_enum, got %v", w, err)
		}
		if _, err := WhenceToUnstable(w); !errors.IsKind(err, errors.KindInvalidEnum) {
			t.Fatalf("WhenceToUnstable(%d): expected invalid_enum, got %v", w, err)
		}
	}
}

func TestSeekShim(t *testing.T) {
	var seen uint64
	stable := &linker.FuncDef{
		Name: "fd_seek",
		Handler: func(_ context.Context, _ api.Module, stack []uint64) {
			seen = stack[2]
			stack[0] = 0
		},
	}
	shim := SeekShim(stable, fdSeekWhenceParam, nil)

	stack := []uint64{3, 10, 0, 64}
	shim.Handler(context.Background(), nil, stack)
	if seen != uint64(wasi.WhenceCur) {
		t.Fatalf("Expected unstable 0 to reach stable as CUR, got %d", seen)
	}

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.IsKind(err, errors.KindInvalidEnum) {
			t.Fatalf("Expected invalid_enum panic, got %v", r)
		}
	}()
	shim.Handler(context.Background(), nil, []uint64{3, 10, 7, 64})
	t.Fatal("Expected panic for whence 7")
}

type fakeLibrary struct {
	table linker.Table
}

func (f fakeLibrary) Table() linker.Table { return f.table }

func newFakeLibrary() fakeLibrary {
	noop := func(context.Context, api.Module, []uint64) {}
	t := linker.NewTable()
	for _, name := range []string{"fd_write", "fd_seek", "fd_filestat_get", "path_filestat_get", "proc_exit"} {
		t.DefineFunc(wasi.SnapshotNamespace, name, noop, nil, nil)
	}
	return fakeLibrary{table: t}
}

func TestBuildImports(t *testing.T) {
	lib := newFakeLibrary()

	stable := BuildImports(VersionStable, lib, nil)
	if stable.Len() != 5 || len(stable.Namespaces()) != 1 || stable.Namespaces()[0] != wasi.SnapshotNamespace {
		t.Fatalf("Expected native table, got %v", stable.Namespaces())
	}

	unstable := BuildImports(VersionUnstable, lib, NewSession("run-1", nil))
	if ns := unstable.Namespaces(); len(ns) != 1 || ns[0] != wasi.UnstableNamespace {
		t.Fatalf("Expected only %s, got %v", wasi.UnstableNamespace, ns)
	}
	if unstable.Len() != 5 {
		t.Fatalf("Expected 5 functions, got %d", unstable.Len())
	}
	for _, name := range []string{"fd_write", "proc_exit"} {
		orig, _ := lib.table.Lookup(wasi.SnapshotNamespace, name)
		got, _ := unstable.Lookup(wasi.UnstableNamespace, name)
		if orig != got {
			t.Fatalf("Expected %s shared with the native table", name)
		}
	}
	for _, name := range []string{"fd_seek", "fd_filestat_get", "path_filestat_get"} {
		orig, _ := lib.table.Lookup(wasi.SnapshotNamespace, name)
		got, _ := unstable.Lookup(wasi.UnstableNamespace, name)
		if orig == got || got.Name != name {
			t.Fatalf("Expected %s replaced by a shim", name)
		}
	}
	if ns := lib.table.Namespaces(); len(ns) != 1 || ns[0] != wasi.SnapshotNamespace || lib.table.Len() != 5 {
		t.Fatalf("Expected native table untouched, got %v", ns)
	}

	if none := BuildImports(VersionNone, lib, nil); none.Len() != 0 {
		t.Fatalf("Expected empty table, got %d", none.Len())
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name       string
		namespaces []string
		want       Version
		wantErr    bool
	}{
		{name: "none", namespaces: []string{"env"}, want: VersionNone},
		{name: "empty", want: VersionNone},
		{name: "unstable", namespaces: []string{"env", "wasi_unstable"}, want: VersionUnstable},
		{name: "stable", namespaces: []string{"wasi_snapshot_preview1"}, want: VersionStable},
		{name: "first wins", namespaces: []string{"wasi_unstable", "wasi_snapshot_preview1"}, want: VersionUnstable},
		{name: "unsupported", namespaces: []string{"wasi_snapshot_preview2"}, wantErr: true},
		{name: "unsupported after known", namespaces: []string{"wasi_unstable", "wasi_ephemeral_nn"}, wantErr: true},
		{name: "case sensitive", namespaces: []string{"WASI_unstable"}, want: VersionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(tt.namespaces)
			if tt.wantErr {
				if !errors.IsKind(err, errors.KindUnsupportedABI) {
					t.Fatalf("Expected unsupported ABI error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestVersionNamespace(t *testing.T) {
	if VersionUnstable.Namespace() != "wasi_unstable" || VersionStable.Namespace() != "wasi_snapshot_preview1" || VersionNone.Namespace() != "" {
		t.Fatal("Unexpected namespaces")
	}
	if VersionNone.String() != "none" || VersionStable.String() != "stable" {
		t.Fatal("Unexpected version names")
	}
}
