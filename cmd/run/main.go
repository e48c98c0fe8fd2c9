// Command run executes a WebAssembly module once, either by calling one
// exported function or by running its _start entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-runner/abi"
	"github.com/wippyai/wasm-runner/invoke"
	"github.com/wippyai/wasm-runner/linker"
	"github.com/wippyai/wasm-runner/runtime"
	"github.com/wippyai/wasm-runner/wasi/preview1"
	"github.com/wippyai/wasm-runner/wasm"
)

type options struct {
	function    string
	configPath  string
	logLevel    string
	env         []string
	dirs        []string
	trace       bool
	list        bool
	interactive bool
}

func main() {
	code, err := execute(os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) (int, error) {
	var code int
	cmd := newRootCmd(stdout, stderr, &code)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		return 1, err
	}
	return code, nil
}

func newRootCmd(stdout, stderr io.Writer, code *int) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "run <module.wasm|module.wat> [args...]",
		Short: "Run a WebAssembly module",
		Long: `Run a WebAssembly module once.

With --func, or when the module imports no WASI namespace and exports a
single function, that function is called with the remaining arguments and
its results are printed. Otherwise the module's _start runs with the
remaining arguments as argv and its exit code becomes the process exit code.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := runModule(cmd, opts, args, stdout, stderr)
			*code = c
			return err
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.SetInterspersed(false)
	flags.StringVarP(&opts.function, "func", "f", "", "exported function to call")
	flags.BoolVar(&opts.trace, "trace", false, "log every host call")
	flags.StringArrayVar(&opts.env, "env", nil, "guest environment variable KEY=VALUE (repeatable)")
	flags.StringArrayVar(&opts.dirs, "dir", nil, "preopened directory host[:guest] (repeatable)")
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (default $"+configEnv+")")
	flags.StringVar(&opts.logLevel, "log-level", defaultLogLevel, "log level: debug, info, warn or error")
	flags.BoolVar(&opts.list, "list", false, "print function signatures and exit")
	flags.BoolVarP(&opts.interactive, "interactive", "i", false, "pick a function and arguments in a terminal UI")
	return cmd
}

func runModule(cmd *cobra.Command, opts *options, args []string, stdout, stderr io.Writer) (int, error) {
	fc, err := loadConfig(opts.configPath)
	if err != nil {
		return 1, err
	}
	level := resolveLogLevel(cmd.Flags(), opts, fc)
	if err := checkLogLevel(level); err != nil {
		return 1, err
	}
	log, err := newLogger(level, stderr)
	if err != nil {
		return 1, err
	}
	defer func() { _ = log.Sync() }()
	installLogger(log)

	cfg, err := buildConfig(cmd.Flags(), opts, fc, args)
	if err != nil {
		return 1, err
	}

	cfg.Stdout, cfg.Stderr = stdout, stderr

	if opts.list {
		return 0, listSignatures(cfg.Path, stdout)
	}

	runner := runtime.NewRunner(log)
	if cfg.Trace {
		// Trace records are emitted whatever the log level.
		sink, err := newLogger("debug", stderr)
		if err != nil {
			return 1, err
		}
		runner.TraceSink = sink.Named("trace")
	}
	if opts.interactive {
		return 0, runInteractive(cmd.Context(), runner, cfg)
	}

	out, err := runner.Run(cmd.Context(), cfg)
	if err != nil {
		return 1, err
	}
	if out.Mode == runtime.ModeInvoke {
		_, _ = fmt.Fprintln(stdout, invoke.FormatResults(out.Results))
		return 0, nil
	}
	return int(out.ExitCode), nil
}

func installLogger(log *zap.Logger) {
	runtime.SetLogger(log)
	linker.SetLogger(log)
	preview1.SetLogger(log)
}

func resolveLogLevel(flags *pflag.FlagSet, opts *options, fc *fileConfig) string {
	if !flags.Changed("log-level") && fc.LogLevel != "" {
		return fc.LogLevel
	}
	return opts.logLevel
}

// buildConfig merges the config file with flags and positional arguments.
func buildConfig(flags *pflag.FlagSet, opts *options, fc *fileConfig, args []string) (runtime.Config, error) {
	cfg := runtime.Config{
		Path:             args[0],
		Function:         opts.function,
		Args:             args[1:],
		Trace:            fc.Trace,
		Env:              make(map[string]string),
		MemoryLimitPages: fc.MemoryLimitPages,
	}
	if len(cfg.Args) == 0 {
		cfg.Args = fc.Args
	}
	if flags.Changed("trace") {
		cfg.Trace = opts.trace
	}

	for k, v := range fc.Env {
		cfg.Env[k] = v
	}
	for _, kv := range opts.env {
		k, v, err := parseEnv(kv)
		if err != nil {
			return cfg, err
		}
		cfg.Env[k] = v
	}

	for _, mapping := range append(append([]string(nil), fc.Dirs...), opts.dirs...) {
		dir, err := parseDir(mapping)
		if err != nil {
			return cfg, err
		}
		cfg.Dirs = append(cfg.Dirs, dir)
	}
	return cfg, nil
}

func listSignatures(path string, w io.Writer) error {
	binary, err := runtime.Load(path)
	if err != nil {
		return err
	}
	sigs, mod, err := wasm.Analyze(binary)
	if err != nil {
		return err
	}
	version, err := abi.Detect(mod.ImportNamespaces())
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "abi: %s\n", version)
	for _, sig := range sigs.ByIndex {
		_, _ = fmt.Fprintln(w, sig.String())
	}
	return nil
}
