// Command accessetl downloads a zipped desktop database, reads every table
// and replaces the matching tables in the warehouse.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"accessetl/internal/config"
	"accessetl/internal/load"
	"accessetl/internal/metrics"
	"accessetl/internal/metrics/datadog"
	"accessetl/internal/pipeline"

	// register all warehouse backends with the storage factory.
	_ "accessetl/internal/storage/all"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

type runner interface {
	Run(ctx context.Context, cfg *config.Config) (load.Report, error)
}

// appDeps are the side-effecting seams of runMain.
type appDeps struct {
	loadConfig  func(opts config.LoadOptions) (*config.Config, error)
	newRunner   func(cfg *config.Config, logger *log.Logger, verbose bool) (runner, error)
	initMetrics func(ctx context.Context, cfg *config.Config, logger *log.Logger) (func(), error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig: config.Load,
		newRunner: func(cfg *config.Config, logger *log.Logger, verbose bool) (runner, error) {
			return pipeline.NewDefaultRunner(cfg, logger, verbose)
		},
		initMetrics: initMetrics,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// runMain executes the CLI and returns the process exit code:
// 0 when the pipeline completed (even if some tables failed to load),
// 1 on a fatal stage error, 2 on usage or configuration errors.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	var (
		verbose        bool
		envFile        string
		cfgFile        string
		metricsBackend string
		validate       bool
	)
	code := exitOK

	cmd := &cobra.Command{
		Use:           "accessetl",
		Short:         "Load every table of a zipped Access database into the warehouse",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code = execute(cmd.Context(), stdout, stderr, deps, options{
				verbose:        verbose,
				envFile:        envFile,
				cfgFile:        cfgFile,
				metricsBackend: metricsBackend,
				validate:       validate,
			})
			return nil
		},
	}
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fl := cmd.Flags()
	fl.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logs")
	fl.StringVar(&envFile, "env-file", "", "dotenv file to read (default .env if present)")
	fl.StringVar(&cfgFile, "config", "", "YAML settings file (default accessetl.yaml if present)")
	fl.StringVar(&metricsBackend, "metrics-backend", "", "metrics backend: datadog or none (overrides METRICS_BACKEND)")
	fl.BoolVar(&validate, "validate", false, "validate the configuration and exit")

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "usage: %v\n", err)
		return exitConfig
	}
	return code
}

type options struct {
	verbose        bool
	envFile        string
	cfgFile        string
	metricsBackend string
	validate       bool
}

func execute(ctx context.Context, stdout, stderr io.Writer, deps appDeps, opts options) int {
	logger := log.New(stderr, "", log.LstdFlags)

	cfg, err := deps.loadConfig(config.LoadOptions{EnvFile: opts.envFile, ConfigFile: opts.cfgFile})
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return exitCodeForError(fmt.Errorf("%w: %w", errInvalidConfig, err))
	}
	if opts.metricsBackend != "" {
		cfg.Metrics.Backend = opts.metricsBackend
	}

	issues := cfg.Validate()
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintln(stderr, "configuration is invalid")
		return exitCodeForError(errInvalidConfig)
	}
	if opts.validate {
		fmt.Fprintln(stdout, "configuration is valid")
		return exitOK
	}
	if opts.verbose {
		logger.Printf("config: %s", cfg.Summary())
	}

	cleanup, err := deps.initMetrics(ctx, cfg, logger)
	if err != nil {
		logger.Printf("metrics: %v; using nop", err)
		cleanup = func() {}
	}
	defer cleanup()

	r, err := deps.newRunner(cfg, logger, opts.verbose)
	if err != nil {
		fmt.Fprintf(stderr, "setup: %v\n", err)
		return exitCodeForError(fmt.Errorf("%w: %w", errInvalidConfig, err))
	}

	start := time.Now()
	rep, err := r.Run(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCodeForError(err)
	}

	fmt.Fprint(stdout, "Load summary:\n"+indent(rep.Summary()))
	if opts.verbose {
		logger.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	return exitOK
}

// errInvalidConfig marks errors raised while loading, validating or
// applying the configuration.
var errInvalidConfig = errors.New("invalid configuration")

// exitCodeForError maps an error to an exit status: configuration problems
// exit 2, anything else 1.
func exitCodeForError(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errInvalidConfig), errors.Is(err, config.ErrConfigNotFound):
		return exitConfig
	default:
		return exitFailed
	}
}

func indent(s string) string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return ""
	}
	return "  " + strings.ReplaceAll(s, "\n", "\n  ") + "\n"
}

// initMetrics installs the configured metrics backend and returns its
// shutdown hook. Datadog buffers and submits periodically, then once more
// on shutdown.
func initMetrics(ctx context.Context, cfg *config.Config, logger *log.Logger) (func(), error) {
	switch cfg.Metrics.Backend {
	case "datadog":
		flushEvery, err := cfg.MetricsFlushEvery()
		if err != nil {
			return nil, err
		}
		// Detached from the signal context so the final flush still runs
		// after an interrupt.
		b, err := datadog.NewBackend(context.WithoutCancel(ctx), datadog.Options{
			JobName:    cfg.Metrics.JobName,
			Tags:       cfg.Metrics.Tags,
			FlushEvery: flushEvery,
		})
		if err != nil {
			return nil, err
		}
		logger.Printf("metrics: backend=datadog job_name=%v tags=%v", cfg.Metrics.JobName, cfg.Metrics.Tags)
		metrics.SetBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logger.Printf("metrics: datadog close/flush error: %v", err)
			}
			metrics.SetBackend(nil)
		}, nil

	default:
		return func() {}, nil
	}
}
