// Package pipeline runs the fetch, extract and load stages once, in order.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"accessetl/internal/config"
	"accessetl/internal/extract"
	"accessetl/internal/fetch"
	"accessetl/internal/load"
	"accessetl/internal/metrics"
	"accessetl/internal/storage"
)

// Logger is the minimal logging interface used by the runner.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// StageError tags a fatal error with the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// Runner wires the three stages. Each function field is a seam; nil fields
// are filled by NewDefaultRunner.
type Runner struct {
	Fetch         func(ctx context.Context, rawURL string) (fetch.EmbeddedFile, error)
	Extract       func(ctx context.Context, file fetch.EmbeddedFile) (*storage.TableSet, error)
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)

	Logger  Logger
	Verbose bool
}

// NewDefaultRunner builds the production stages from cfg.
func NewDefaultRunner(cfg *config.Config, logger Logger, verbose bool) (*Runner, error) {
	timeout, err := cfg.HTTPTimeout()
	if err != nil {
		return nil, fmt.Errorf("archive.http_timeout: %w", err)
	}

	f := fetch.New(fetch.Options{
		Suffix:                cfg.Archive.EntrySuffix,
		Timeout:               timeout,
		UserAgent:             cfg.Archive.UserAgent,
		JobName:               cfg.Metrics.JobName,
		S3Endpoint:            cfg.Archive.S3Endpoint,
		AzureConnectionString: cfg.Archive.AzureConnectionString,
		Logger:                logger,
	})

	x, err := extract.New(extract.Options{
		ODBCDriver: cfg.Source.ODBCDriver,
		Charset:    cfg.Source.Charset,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &Runner{
		Fetch:         f.Fetch,
		Extract:       x.Extract,
		NewRepository: storage.New,
		Logger:        logger,
		Verbose:       verbose,
	}, nil
}

// Run executes fetch, extract and load. A non-nil error is always a
// *StageError and means the run stopped before loading; per-table load
// failures are reported in the returned Report instead.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (load.Report, error) {
	logf := r.logger()

	start := time.Now()
	file, err := r.Fetch(ctx, cfg.Archive.URL)
	metrics.RecordStep("fetch", err, time.Since(start))
	if err != nil {
		return load.Report{}, &StageError{Stage: "fetch", Err: err}
	}
	logf("stage=fetch ok duration=%s bytes=%d", durMS(start), len(file.Data))

	start = time.Now()
	set, err := r.Extract(ctx, file)
	metrics.RecordStep("extract", err, time.Since(start))
	if err != nil {
		return load.Report{}, &StageError{Stage: "extract", Err: err}
	}
	logf("stage=extract ok duration=%s tables=%d", durMS(start), set.Len())

	start = time.Now()
	repo, err := r.NewRepository(ctx, cfg.StorageConfig())
	if err != nil {
		err = fmt.Errorf("connect %s: %w", cfg.Warehouse.Kind, err)
		metrics.RecordStep("load", err, time.Since(start))
		return load.Report{}, &StageError{Stage: "load", Err: err}
	}
	defer repo.Close()

	loader := &load.Loader{Repo: repo, Logger: r.Logger, Verbose: r.Verbose}
	rep := loader.Load(ctx, set)

	var loadErr error
	if n := rep.Failed(); n > 0 {
		loadErr = fmt.Errorf("%d of %d tables failed", n, len(rep.Outcomes))
	}
	metrics.RecordStep("load", loadErr, time.Since(start))
	logf("stage=load ok duration=%s tables=%d failed=%d", durMS(start), len(rep.Outcomes), rep.Failed())

	return rep, nil
}

func (r *Runner) logger() func(format string, v ...any) {
	if r.Logger == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return r.Logger.Printf
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }
