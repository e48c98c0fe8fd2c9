package runtime

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/linker"
	"github.com/wippyai/wasm-runner/wasi"
	"github.com/wippyai/wasm-runner/wasi/preview1"
	"github.com/wippyai/wasm-runner/wat"
)

// Filestat buffer and the 8 bytes that follow the unstable record.
const (
	statBuf  = 100
	tailAddr = statBuf + wasi.UnstableFilestatSize
)

var sentinel = []byte{0xDE, 0xAD, 0xBE, 0xEF, 0xCA, 0xFE, 0xBA, 0xBE}

func compile(t testing.TB, src string) []byte {
	t.Helper()
	bin, err := wat.Compile(src)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return bin
}

// watString renders b as a text-format string literal.
func watString(b []byte) string {
	var s strings.Builder
	s.WriteByte('"')
	for _, c := range b {
		fmt.Fprintf(&s, "\\%02x", c)
	}
	s.WriteByte('"')
	return s.String()
}

func doubleModule(t testing.TB) []byte {
	return compile(t, doubleWAT)
}

func TestRunBinary_DoublesSoleExport(t *testing.T) {
	out, err := NewRunner(nil).RunBinary(context.Background(), doubleModule(t), Config{Args: []string{"21"}})
	if err != nil {
		t.Fatalf("RunBinary failed: %v", err)
	}
	if out.Mode != ModeInvoke || out.Function != "double" {
		t.Fatalf("Expected invoke of double, got %s %q", out.Mode, out.Function)
	}
	if len(out.Results) != 1 || out.Results[0] != int32(42) {
		t.Fatalf("Expected [42], got %v", out.Results)
	}
	if out.ExitCode != 0 {
		t.Fatalf("Expected exit code 0, got %d", out.ExitCode)
	}
	if out.RunID == "" || out.Digest == 0 {
		t.Fatal("Expected run id and digest")
	}
}

func TestRunBinary_ArgumentErrors(t *testing.T) {
	r := NewRunner(nil)
	_, err := r.RunBinary(context.Background(), doubleModule(t), Config{Args: []string{"abc"}})
	if !errors.IsKind(err, errors.KindArgumentParse) {
		t.Fatalf("Expected argument parse error, got %v", err)
	}
	_, err = r.RunBinary(context.Background(), doubleModule(t), Config{})
	if !errors.IsKind(err, errors.KindArgumentParse) {
		t.Fatalf("Expected argument parse error for missing argument, got %v", err)
	}
	_, err = r.RunBinary(context.Background(), doubleModule(t), Config{Function: "triple", Args: []string{"1"}})
	if !errors.IsKind(err, errors.KindFunctionNotFound) {
		t.Fatalf("Expected function not found, got %v", err)
	}
}

func TestRunBinary_UnsupportedABI(t *testing.T) {
	bin := compile(t, `(module
  (import "wasi_preview9" "fd_write" (func (param i32 i32 i32 i32) (result i32))))`)
	_, err := NewRunner(nil).RunBinary(context.Background(), bin, Config{})
	if !errors.IsKind(err, errors.KindUnsupportedABI) {
		t.Fatalf("Expected unsupported ABI error, got %v", err)
	}
}

func TestRunBinary_MissingImportTraps(t *testing.T) {
	bin := compile(t, `(module
  (import "env" "missing" (func $missing (result i32)))
  (func (export "call_missing") (result i32) (call $missing))
  (func (export "answer") (result i32) (i32.const 42)))`)

	r := NewRunner(nil)
	out, err := r.RunBinary(context.Background(), bin, Config{Function: "answer"})
	if err != nil {
		t.Fatalf("Unrelated import blocked the run: %v", err)
	}
	if out.Results[0] != int32(42) {
		t.Fatalf("Expected 42, got %v", out.Results)
	}

	_, err = r.RunBinary(context.Background(), bin, Config{Function: "call_missing"})
	if !errors.IsKind(err, errors.KindTrap) || !errors.IsKind(err, errors.KindMissingImport) {
		t.Fatalf("Expected trap from missing import, got %v", err)
	}
}

// statLibrary serves a stable fd_filestat_get that writes stat.
type statLibrary struct {
	stat wasi.Filestat
}

func (l statLibrary) Table() linker.Table {
	t := linker.NewTable()
	t.DefineFunc(wasi.SnapshotNamespace, "fd_filestat_get", func(_ context.Context, mod api.Module, stack []uint64) {
		region, ok := mod.Memory().Read(uint32(stack[1]), wasi.StableFilestatSize)
		if !ok {
			stack[0] = uint64(wasi.EFAULT)
			return
		}
		if err := wasi.StableFilestat.EncodeInto(region, l.stat.Record()); err != nil {
			panic(err)
		}
		stack[0] = uint64(wasi.ESUCCESS)
	}, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32})
	return t
}

// filestatModule imports fd_filestat_get from ns and exports readers that
// call it on fd 3 and then load a value from the buffer.
func filestatModule(t testing.TB, ns string) []byte {
	return compile(t, fmt.Sprintf(`(module
  (import %q "fd_filestat_get" (func $stat (param i32 i32) (result i32)))
  (memory 1)
  (data (i32.const %d) %s)
  (global $buf i32 (i32.const %d))
  (func $stat3 (result i32) (call $stat (i32.const 3) (global.get $buf)))
  (func (export "errno") (result i32) (call $stat3))
  (func (export "filetype") (result i32) (drop (call $stat3)) (i32.load offset=16 (global.get $buf)))
  (func (export "nlink") (result i32) (drop (call $stat3)) (i32.load offset=20 (global.get $buf)))
  (func (export "size") (result i64) (drop (call $stat3)) (i64.load offset=24 (global.get $buf)))
  (func (export "ctim") (result i64) (drop (call $stat3)) (i64.load offset=48 (global.get $buf)))
  (func (export "tail") (result i64) (drop (call $stat3)) (i64.load offset=%d (global.get $buf))))`,
		ns, tailAddr, watString(sentinel), statBuf, wasi.UnstableFilestatSize))
}

func TestRunBinary_UnstableFilestat(t *testing.T) {
	lib := statLibrary{stat: wasi.Filestat{
		Dev:      1,
		Ino:      2,
		Filetype: wasi.FiletypeRegularFile,
		Nlink:    0x0000_0005_0000_0007,
		Size:     4096,
		Ctim:     99,
	}}
	bin := filestatModule(t, wasi.UnstableNamespace)
	r := NewRunner(nil)

	tests := []struct {
		function string
		want     any
	}{
		{"errno", int32(wasi.ESUCCESS)},
		{"filetype", int32(wasi.FiletypeRegularFile)},
		{"nlink", int32(7)},
		{"size", int64(4096)},
		{"ctim", int64(99)},
		{"tail", int64(binary.LittleEndian.Uint64(sentinel))},
	}
	for _, tt := range tests {
		t.Run(tt.function, func(t *testing.T) {
			out, err := r.RunBinary(context.Background(), bin, Config{Function: tt.function, Library: lib})
			if err != nil {
				t.Fatalf("RunBinary failed: %v", err)
			}
			if out.Results[0] != tt.want {
				t.Fatalf("Expected %v, got %v", tt.want, out.Results[0])
			}
		})
	}
}

func TestRunBinary_FilestatWithPreview1(t *testing.T) {
	dirs := []preview1.Preopen{{Host: t.TempDir(), Guest: "/"}}
	r := NewRunner(nil)

	for _, ns := range []string{wasi.UnstableNamespace, wasi.SnapshotNamespace} {
		t.Run(ns, func(t *testing.T) {
			out, err := r.RunBinary(context.Background(), filestatModule(t, ns), Config{Function: "filetype", Dirs: dirs})
			if err != nil {
				t.Fatalf("RunBinary failed: %v", err)
			}
			if out.Results[0] != int32(wasi.FiletypeDirectory) {
				t.Fatalf("Expected directory filetype, got %v", out.Results[0])
			}
		})
	}
}

func TestRunBinary_LogsDescriptorLifecycle(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := NewRunner(zap.New(core))
	cfg := Config{Function: "filetype", Dirs: []preview1.Preopen{{Host: t.TempDir(), Guest: "/"}}}

	if _, err := r.RunBinary(context.Background(), filestatModule(t, wasi.SnapshotNamespace), cfg); err != nil {
		t.Fatalf("RunBinary failed: %v", err)
	}

	opened := logs.FilterMessage("descriptor opened").All()
	if len(opened) != 4 {
		t.Fatalf("Expected stdio and one preopen opened, got %d", len(opened))
	}
	last := opened[3].ContextMap()
	if last["fd"] != uint32(3) || last["kind"] != "dir" {
		t.Fatalf("Expected preopen on fd 3, got %v", last)
	}
	if n := logs.FilterMessage("descriptor closed").Len(); n != 4 {
		t.Fatalf("Expected every descriptor closed after the run, got %d", n)
	}
}

func TestRunBinary_EntryPoint(t *testing.T) {
	bin := compile(t, `(module
  (import "wasi_snapshot_preview1" "fd_write" (func $fd_write (param i32 i32 i32 i32) (result i32)))
  (import "wasi_snapshot_preview1" "proc_exit" (func $proc_exit (param i32)))
  (memory 1)
  (data (i32.const 0) "\10\00\00\00\05\00\00\00")
  (data (i32.const 16) "hello")
  (func (export "_start")
    (drop (call $fd_write (i32.const 1) (i32.const 0) (i32.const 1) (i32.const 64)))
    (call $proc_exit (i32.const 3)))
  (func (export "helper") (result i32) (i32.const 1)))`)

	var stdout bytes.Buffer
	out, err := NewRunner(nil).RunBinary(context.Background(), bin, Config{Stdout: &stdout})
	if err != nil {
		t.Fatalf("RunBinary failed: %v", err)
	}
	if out.Mode != ModeEntry || out.Function != "_start" {
		t.Fatalf("Expected entry run of _start, got %s %q", out.Mode, out.Function)
	}
	if out.ExitCode != 3 {
		t.Fatalf("Expected exit code 3, got %d", out.ExitCode)
	}
	if stdout.String() != "hello" {
		t.Fatalf("Expected hello on stdout, got %q", stdout.String())
	}
}

func TestRunBinary_EntryPointReturns(t *testing.T) {
	bin := compile(t, `(module
  (import "wasi_snapshot_preview1" "sched_yield" (func (result i32)))
  (func (export "_start")))`)

	out, err := NewRunner(nil).RunBinary(context.Background(), bin, Config{})
	if err != nil {
		t.Fatalf("RunBinary failed: %v", err)
	}
	if out.Mode != ModeEntry || out.ExitCode != 0 {
		t.Fatalf("Expected clean entry run, got %+v", out)
	}
}

func TestRunBinary_ExplicitCallIgnoresEntry(t *testing.T) {
	bin := compile(t, `(module
  (import "wasi_snapshot_preview1" "proc_exit" (func $proc_exit (param i32)))
  (func (export "_start") (call $proc_exit (i32.const 9)))
  (func (export "seven") (result i32) (i32.const 7)))`)

	out, err := NewRunner(nil).RunBinary(context.Background(), bin, Config{Function: "seven"})
	if err != nil {
		t.Fatalf("RunBinary failed: %v", err)
	}
	if out.ExitCode != 0 || out.Results[0] != int32(7) {
		t.Fatalf("Expected 7 with exit code 0, got %+v", out)
	}
}
