// Package metrics is the process-wide metrics facade.
//
// Pipeline code calls the Record* helpers; a concrete Backend (Datadog, or
// the nop default) is installed once by main with SetBackend.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names emitted by the helpers below. Backends switch on these.
const (
	StepTotal           = "accessetl_step_total"
	StepDurationSeconds = "accessetl_step_duration_seconds"
	TableLoadsTotal     = "accessetl_table_loads_total"
	RowsLoadedTotal     = "accessetl_rows_loaded_total"
	HTTPRequestsTotal   = "accessetl_http_requests_total"
	HTTPErrorsTotal     = "accessetl_http_errors_total"
	HTTPRequestSeconds  = "accessetl_http_request_duration_seconds"
	HTTPResponseSeconds = "accessetl_http_response_duration_seconds"
	HTTPDownloadBytes   = "accessetl_http_download_bytes"
)

type Labels map[string]string

// Backend receives metric events. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels) {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b restores the nop backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush asks the installed backend to submit buffered data.
func Flush() error {
	return current().Flush()
}

// RecordStep records one pipeline stage (fetch, extract, load) with its
// outcome and duration.
func RecordStep(step string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordTableLoad records one table outcome ("success", "partial",
// "failure") and the rows the warehouse reported as loaded.
func RecordTableLoad(table, status string, rows int64) {
	b := current()
	b.IncCounter(TableLoadsTotal, 1, Labels{"status": status, "table": table})
	if rows > 0 {
		b.IncCounter(RowsLoadedTotal, float64(rows), Labels{"table": table})
	}
}

// RecordHTTP records one HTTP attempt. status is 0 when no response was
// received.
func RecordHTTP(job string, status int, err error, reqDur, respDur time.Duration, bytes int64) {
	st := "none"
	if status > 0 {
		st = strconv.Itoa(status)
	}
	l := Labels{"job": job, "status": st}
	b := current()
	b.IncCounter(HTTPRequestsTotal, 1, l)
	if err != nil || status >= 400 || status == 0 {
		b.IncCounter(HTTPErrorsTotal, 1, l)
	}
	b.ObserveHistogram(HTTPRequestSeconds, reqDur.Seconds(), l)
	if respDur > 0 {
		b.ObserveHistogram(HTTPResponseSeconds, respDur.Seconds(), l)
	}
	if bytes > 0 {
		b.ObserveHistogram(HTTPDownloadBytes, float64(bytes), l)
	}
}
