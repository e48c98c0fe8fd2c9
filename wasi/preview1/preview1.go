package preview1

import (
	"context"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/linker"
	"github.com/wippyai/wasm-runner/memory"
	"github.com/wippyai/wasm-runner/resource"
	"github.com/wippyai/wasm-runner/wasi"
)

// Preopen maps a host directory into the guest under a guest path.
type Preopen struct {
	Host  string
	Guest string
}

// WASI configures a preview1 environment. Use builder methods to set up,
// then Open before instantiating a guest and Close after the run.
type WASI struct {
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	random   io.Reader
	now      func() time.Time
	start    time.Time
	fds      *resource.Table
	env      map[string]string
	args     []string
	preopens []Preopen
}

// New creates a WASI environment bound to the process stdio.
func New() *WASI {
	return &WASI{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		random: rand.Reader,
		now:    time.Now,
		env:    make(map[string]string),
		fds:    resource.NewTable(),
	}
}

// WithArgs sets the guest argv, program name included.
func (w *WASI) WithArgs(args []string) *WASI {
	w.args = args
	return w
}

// WithEnv sets environment variables
func (w *WASI) WithEnv(env map[string]string) *WASI {
	w.env = env
	return w
}

// WithPreopen adds a preopened directory.
func (w *WASI) WithPreopen(host, guest string) *WASI {
	w.preopens = append(w.preopens, Preopen{Host: host, Guest: guest})
	return w
}

// WithStdin sets the reader behind fd 0.
func (w *WASI) WithStdin(r io.Reader) *WASI {
	w.stdin = r
	return w
}

// WithStdout sets the writer behind fd 1.
func (w *WASI) WithStdout(wr io.Writer) *WASI {
	w.stdout = wr
	return w
}

// WithStderr sets the writer behind fd 2.
func (w *WASI) WithStderr(wr io.Writer) *WASI {
	w.stderr = wr
	return w
}

// WithRandom sets the source for random_get.
func (w *WASI) WithRandom(r io.Reader) *WASI {
	w.random = r
	return w
}

// WithClock sets the realtime clock source.
func (w *WASI) WithClock(now func() time.Time) *WASI {
	w.now = now
	return w
}

// Descriptors returns the descriptor table.
func (w *WASI) Descriptors() *resource.Table {
	return w.fds
}

// Open populates the descriptor table: stdio on 0-2, then preopens in
// the order they were added.
func (w *WASI) Open() error {
	w.start = time.Now()
	w.fds.Clear()
	w.fds.InsertAt(0, resource.KindStdio, &stdio{r: w.stdin})
	w.fds.InsertAt(1, resource.KindStdio, &stdio{w: w.stdout})
	w.fds.InsertAt(2, resource.KindStdio, &stdio{w: w.stderr})

	for _, p := range w.preopens {
		host, err := filepath.Abs(p.Host)
		if err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "preopen "+p.Host)
		}
		info, err := os.Stat(host)
		if err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "preopen "+p.Host)
		}
		if !info.IsDir() {
			return errors.InvalidInput(errors.PhaseConfig, "preopen "+p.Host+" is not a directory")
		}
		fd := w.fds.Insert(resource.KindDir, &dir{host: host, guest: p.Guest, preopen: true})
		Logger().Debug("preopened directory",
			zap.String("host", host),
			zap.String("guest", p.Guest),
			zap.Uint32("fd", uint32(fd)))
	}
	return nil
}

// Close releases every descriptor.
func (w *WASI) Close() error {
	w.fds.Clear()
	return nil
}

// environ returns the environment as sorted KEY=VALUE strings.
func (w *WASI) environ() []string {
	out := make([]string, 0, len(w.env))
	for k, v := range w.env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Table returns the host functions under wasi_snapshot_preview1.
func (w *WASI) Table() linker.Table {
	i32, i64 := api.ValueTypeI32, api.ValueTypeI64
	t := linker.NewTable()
	def := func(name string, fn errnoFunc, params ...api.ValueType) {
		t.DefineFunc(wasi.SnapshotNamespace, name, fn.handler(), params, []api.ValueType{i32})
	}

	def("args_get", w.argsGet, i32, i32)
	def("args_sizes_get", w.argsSizesGet, i32, i32)
	def("environ_get", w.environGet, i32, i32)
	def("environ_sizes_get", w.environSizesGet, i32, i32)
	def("clock_res_get", w.clockResGet, i32, i32)
	def("clock_time_get", w.clockTimeGet, i32, i64, i32)
	def("fd_close", w.fdClose, i32)
	def("fd_fdstat_get", w.fdFdstatGet, i32, i32)
	def("fd_filestat_get", w.fdFilestatGet, i32, i32)
	def("fd_prestat_get", w.fdPrestatGet, i32, i32)
	def("fd_prestat_dir_name", w.fdPrestatDirName, i32, i32, i32)
	def("fd_read", w.fdRead, i32, i32, i32, i32)
	def("fd_seek", w.fdSeek, i32, i64, i32, i32)
	def("fd_tell", w.fdTell, i32, i32)
	def("fd_write", w.fdWrite, i32, i32, i32, i32)
	def("path_filestat_get", w.pathFilestatGet, i32, i32, i32, i32, i32)
	def("path_open", w.pathOpen, i32, i32, i32, i32, i32, i64, i64, i32, i32)
	def("random_get", w.randomGet, i32, i32)
	def("sched_yield", w.schedYield)

	t.DefineFunc(wasi.SnapshotNamespace, "proc_exit", w.procExit, []api.ValueType{i32}, nil)
	return t
}

// errnoFunc is a host function body returning an errno. params aliases
// the engine stack.
type errnoFunc func(ctx context.Context, g *memory.Guest, params []uint64) wasi.Errno

func (fn errnoFunc) handler() api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		g := memory.Wrap(mod)
		if g == nil {
			stack[0] = uint64(wasi.EFAULT)
			return
		}
		stack[0] = uint64(fn(ctx, g, stack))
	}
}
