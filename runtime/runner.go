package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/sys"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-runner/abi"
	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/invoke"
	"github.com/wippyai/wasm-runner/linker"
	"github.com/wippyai/wasm-runner/resource"
	"github.com/wippyai/wasm-runner/wasi/preview1"
	"github.com/wippyai/wasm-runner/wasm"
)

// Mode says how a run reached the guest.
type Mode string

const (
	ModeInvoke Mode = "invoke" // a single exported function was called
	ModeEntry  Mode = "entry"  // the capability entry point ran
)

// Config describes one run.
type Config struct {
	// Path is the module file. RunBinary uses it only for argv[0].
	Path string

	// Function requests explicit invocation of an export.
	Function string

	// Args are the invocation arguments in invoke mode, or the guest
	// argv after argv[0] in entry mode.
	Args []string

	Env  map[string]string
	Dirs []preview1.Preopen

	// Trace wraps every import with a call tracer.
	Trace bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Library replaces the preview1 capability library.
	Library abi.Library

	// MemoryLimitPages caps guest memory in 64KiB pages. 0 keeps the
	// engine default.
	MemoryLimitPages uint32
}

// Outcome reports what a run did.
type Outcome struct {
	Mode      Mode
	Function  string
	Signature *wasm.FunctionSignature
	Results   []any
	ExitCode  uint32
	RunID     string
	Digest    uint64
}

// Runner executes modules. The zero value logs through the package logger.
type Runner struct {
	Logger *zap.Logger
	// TraceSink receives trace records. Defaults to Logger named "trace".
	TraceSink *zap.Logger
}

// NewRunner creates a runner logging to l.
func NewRunner(l *zap.Logger) *Runner {
	return &Runner{Logger: l}
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return Logger()
}

func (r *Runner) traceSink() *zap.Logger {
	if r.TraceSink != nil {
		return r.TraceSink
	}
	return r.logger().Named("trace")
}

// Run loads cfg.Path and runs it.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Outcome, error) {
	binary, err := Load(cfg.Path)
	if err != nil {
		return nil, err
	}
	return r.RunBinary(ctx, binary, cfg)
}

// RunBinary analyzes binary, links its imports and either calls the
// selected function or runs the capability entry point. An explicit call
// always reports exit code 0; an entry point run reports the guest's.
func (r *Runner) RunBinary(ctx context.Context, binary []byte, cfg Config) (*Outcome, error) {
	out := &Outcome{RunID: uuid.New().String(), Digest: xxh3.Hash(binary)}
	log := r.logger().With(
		zap.String("run_id", out.RunID),
		zap.String("module_digest", fmt.Sprintf("%016x", out.Digest)))

	sigs, mod, err := wasm.Analyze(binary)
	if err != nil {
		return nil, err
	}
	version, err := abi.Detect(mod.ImportNamespaces())
	if err != nil {
		return nil, err
	}
	target, err := SelectFunction(cfg.Function, version, sigs)
	if err != nil {
		return nil, err
	}

	var typed []any
	if target != nil {
		typed, err = invoke.Coerce(target.Signature.Params, cfg.Args)
		if err != nil {
			return nil, err
		}
	}
	log.Debug("module analyzed",
		zap.Stringer("abi", version),
		zap.Int("functions", len(sigs.ByIndex)),
		zap.Strings("exports", sigs.ExportNames()))

	lib := cfg.Library
	if lib == nil {
		w := capabilities(cfg, target == nil)
		w.Descriptors().Subscribe(descriptorLog(log))
		if err := w.Open(); err != nil {
			return nil, err
		}
		defer w.Close()
		lib = w
	}

	table := abi.BuildImports(version, lib, abi.NewSession(out.RunID, log))
	linker.StubMissing(table, mod.FuncImports())
	if cfg.Trace {
		table = abi.Trace(table, r.traceSink().With(zap.String("run_id", out.RunID)))
	}

	rtCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		rtCfg = rtCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)
	defer rt.Close(ctx)

	if _, err := linker.Instantiate(ctx, rt, table); err != nil {
		return nil, err
	}
	compiled, err := rt.CompileModule(ctx, binary)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}

	if target != nil {
		return r.invoke(ctx, rt, compiled, target, typed, out, log)
	}
	return r.entry(ctx, rt, compiled, sigs, out, log)
}

func (r *Runner) invoke(ctx context.Context, rt wazero.Runtime, compiled wazero.CompiledModule,
	target *Target, typed []any, out *Outcome, log *zap.Logger,
) (*Outcome, error) {
	inst, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithStartFunctions())
	if err != nil {
		return nil, errors.Instantiation("module", err)
	}
	defer inst.Close(ctx)

	fn := inst.ExportedFunction(target.Name)
	if fn == nil {
		return nil, errors.FunctionNotFound(target.Name)
	}
	stack, err := invoke.EncodeParams(typed)
	if err != nil {
		return nil, err
	}
	raw, err := fn.Call(ctx, stack...)
	if err != nil {
		return nil, errors.Trap(target.Name, err)
	}

	out.Mode = ModeInvoke
	out.Function = target.Name
	out.Signature = target.Signature
	out.Results = invoke.DecodeResults(target.Signature.Results, raw)
	log.Info("function returned",
		zap.String("function", target.Name),
		zap.String("results", invoke.FormatResults(out.Results)))
	return out, nil
}

func (r *Runner) entry(ctx context.Context, rt wazero.Runtime, compiled wazero.CompiledModule,
	sigs *wasm.Signatures, out *Outcome, log *zap.Logger,
) (*Outcome, error) {
	out.Mode = ModeEntry
	if _, ok := sigs.Lookup("_start"); ok {
		out.Function = "_start"
	} else {
		log.Warn("module exports no _start, nothing to run")
	}

	inst, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	var exit *sys.ExitError
	if stderrors.As(err, &exit) {
		out.ExitCode = exit.ExitCode()
		log.Debug("guest exited", zap.Uint32("code", out.ExitCode))
		return out, nil
	}
	if err != nil {
		return nil, errors.Instantiation("module", err)
	}
	if inst != nil {
		_ = inst.Close(ctx)
	}
	return out, nil
}

// descriptorLog records guest descriptor lifecycle at debug level.
func descriptorLog(log *zap.Logger) resource.Observer {
	return resource.ObserverFunc(func(e resource.Event) {
		msg := "descriptor opened"
		if e.Type == resource.EventDropped {
			msg = "descriptor closed"
		}
		log.Debug(msg, zap.Uint32("fd", uint32(e.Handle)), zap.Stringer("kind", e.Kind))
	})
}

// capabilities builds the preview1 library for cfg. In entry mode the
// run arguments become the guest argv.
func capabilities(cfg Config, entry bool) *preview1.WASI {
	argv0 := filepath.Base(cfg.Path)
	if cfg.Path == "" {
		argv0 = "module.wasm"
	}
	argv := []string{argv0}
	if entry {
		argv = append(argv, cfg.Args...)
	}

	w := preview1.New().WithArgs(argv)
	if cfg.Env != nil {
		w.WithEnv(cfg.Env)
	}
	for _, d := range cfg.Dirs {
		w.WithPreopen(d.Host, d.Guest)
	}
	if cfg.Stdin != nil {
		w.WithStdin(cfg.Stdin)
	}
	if cfg.Stdout != nil {
		w.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		w.WithStderr(cfg.Stderr)
	}
	return w
}
