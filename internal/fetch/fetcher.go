// Package fetch downloads the archive and pulls the embedded database file
// out of it.
//
// Archives may come from http(s), local files or object storage (s3, gs,
// az); the scheme of the configured URL picks the Source.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Logger is the minimal logging interface used by the fetcher.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Source retrieves the raw archive bytes for one URL scheme.
type Source interface {
	Fetch(ctx context.Context, u *url.URL) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, u *url.URL) ([]byte, error)

func (f SourceFunc) Fetch(ctx context.Context, u *url.URL) ([]byte, error) { return f(ctx, u) }

// Options configures New.
type Options struct {
	// Suffix selects the archive entry. Defaults to ".accdb".
	Suffix string

	// Client is used for http(s). Defaults to a client with Timeout.
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string

	// JobName labels HTTP metrics.
	JobName string

	// S3Endpoint targets an S3-compatible store instead of AWS.
	S3Endpoint string
	// AzureConnectionString authenticates az:// URLs.
	AzureConnectionString string

	Logger Logger
}

// Fetcher downloads an archive and extracts one embedded file.
type Fetcher struct {
	suffix  string
	sources map[string]Source
	logger  Logger
}

// New builds a Fetcher with the http, https, file, s3, gs and az sources.
func New(opts Options) *Fetcher {
	suffix := opts.Suffix
	if suffix == "" {
		suffix = ".accdb"
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	f := &Fetcher{
		suffix:  suffix,
		sources: map[string]Source{},
		logger:  opts.Logger,
	}
	if f.logger == nil {
		f.logger = log.New(io.Discard, "", 0)
	}

	hs := &HTTPSource{Client: client, UserAgent: opts.UserAgent, JobName: opts.JobName, Logger: f.logger}
	f.Register("http", hs)
	f.Register("https", hs)
	f.Register("file", SourceFunc(fetchFile))
	f.Register("s3", &S3Source{Endpoint: opts.S3Endpoint})
	f.Register("gs", SourceFunc(fetchGCS))
	f.Register("az", &AzureSource{ConnectionString: opts.AzureConnectionString})
	return f
}

// Register installs (or replaces) the Source for scheme.
func (f *Fetcher) Register(scheme string, s Source) {
	f.sources[strings.ToLower(scheme)] = s
}

// Schemes lists the registered URL schemes, sorted.
func (f *Fetcher) Schemes() []string {
	out := make([]string, 0, len(f.sources))
	for k := range f.sources {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Fetch downloads rawURL into memory and returns the first entry whose name
// ends with the configured suffix.
//
// Errors:
//   - *DownloadError when the archive cannot be retrieved.
//   - *ArchiveError when the payload is not a readable zip.
//   - *NotFoundError (errors.Is ErrNotFound) when no entry matches.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (EmbeddedFile, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return EmbeddedFile{}, &DownloadError{URL: rawURL, Err: err}
	}
	src, ok := f.sources[strings.ToLower(u.Scheme)]
	if !ok {
		return EmbeddedFile{}, &DownloadError{URL: rawURL, Err: fmt.Errorf("unsupported scheme %q (supported: %v)", u.Scheme, f.Schemes())}
	}

	f.logger.Printf("Downloading archive from %s", redact(u))
	start := time.Now()
	payload, err := src.Fetch(ctx, u)
	if err != nil {
		var de *DownloadError
		if errors.As(err, &de) {
			return EmbeddedFile{}, err
		}
		return EmbeddedFile{}, &DownloadError{URL: redact(u), Err: err}
	}
	f.logger.Printf("Downloaded %d bytes in %s", len(payload), time.Since(start).Truncate(time.Millisecond))

	file, err := Unpack(payload, f.suffix, func(name string, isDir bool, size uint64) {
		if isDir {
			f.logger.Printf("  archive entry: %s (dir)", name)
			return
		}
		f.logger.Printf("  archive entry: %s (%d bytes)", name, size)
	})
	if err != nil {
		return EmbeddedFile{}, err
	}
	f.logger.Printf("Extracted %s (%d bytes)", file.Name, len(file.Data))
	return file, nil
}

func redact(u *url.URL) string {
	if u.User == nil {
		return u.String()
	}
	c := *u
	c.User = url.User("redacted")
	return c.String()
}
