package fetch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is wrapped by NotFoundError; test with errors.Is.
var ErrNotFound = errors.New("embedded database file not found in archive")

// DownloadError reports a failed download: transport failure, a non-2xx
// status or an unusable response. StatusCode is 0 when no response arrived.
type DownloadError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *DownloadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "download %s", e.URL)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": http status %d", e.StatusCode)
		if e.Body != "" {
			fmt.Fprintf(&b, ": %s", e.Body)
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DownloadError) Unwrap() error { return e.Err }

// NotFoundError means no archive entry ended with Suffix.
type NotFoundError struct {
	Suffix  string
	Entries []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no entry ending in %q among %d archive entries", e.Suffix, len(e.Entries))
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ArchiveError means the payload could not be read as a zip archive, or the
// selected entry could not be decompressed.
type ArchiveError struct {
	Entry string
	Err   error
}

func (e *ArchiveError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("archive entry %s: %v", e.Entry, e.Err)
	}
	return fmt.Sprintf("archive: %v", e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }
