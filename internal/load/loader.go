// Package load writes a TableSet into the warehouse, one table at a time,
// using create-or-replace semantics.
package load

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"accessetl/internal/metrics"
	"accessetl/internal/storage"
)

// Logger is the minimal logging interface used by the loader.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailure Status = "failure"
)

// Outcome is the result for one table. Rows is the count the warehouse
// reported as loaded; Err is set only for StatusFailure.
type Outcome struct {
	Table  string
	Status Status
	Rows   int64
	Sent   int64
	Err    error
}

func (o Outcome) String() string {
	switch o.Status {
	case StatusFailure:
		return fmt.Sprintf("%s: failure(%v)", o.Table, o.Err)
	case StatusPartial:
		return fmt.Sprintf("%s: partial(%d of %d)", o.Table, o.Rows, o.Sent)
	default:
		return fmt.Sprintf("%s: success(%d)", o.Table, o.Rows)
	}
}

// Report holds per-table outcomes in load order.
type Report struct {
	Outcomes []Outcome
}

// Get returns the outcome for a destination table name.
func (r Report) Get(table string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Table == table {
			return o, true
		}
	}
	return Outcome{}, false
}

// Failed counts tables with StatusFailure.
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusFailure {
			n++
		}
	}
	return n
}

// Summary renders one line per table, for the final console output.
func (r Report) Summary() string {
	var b strings.Builder
	for _, o := range r.Outcomes {
		b.WriteString(o.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Loader pushes tables into a Repository. Tables are independent: a failure
// on one is recorded and the next table is attempted.
type Loader struct {
	Repo   storage.Repository
	Logger Logger

	// Verbose logs the generated column list for each table.
	Verbose bool
}

// Load loads every table of set in order. It never returns early on a table
// failure; cancellation of ctx surfaces as failures of the remaining tables.
func (l *Loader) Load(ctx context.Context, set *storage.TableSet) Report {
	logf := l.logger()

	var rep Report
	for _, t := range set.Tables() {
		start := time.Now()
		o := l.loadTable(ctx, t)
		rep.Outcomes = append(rep.Outcomes, o)

		metrics.RecordTableLoad(o.Table, string(o.Status), o.Rows)
		switch o.Status {
		case StatusFailure:
			logf("Failed to upload table %s: %v", o.Table, o.Err)
		case StatusPartial:
			logf("Uploaded table %s: %d of %d rows loaded in %s", o.Table, o.Rows, o.Sent, durMS(start))
		default:
			logf("Uploaded table %s: %d rows in %s", o.Table, o.Rows, durMS(start))
		}
	}
	return rep
}

func (l *Loader) loadTable(ctx context.Context, t *storage.Table) Outcome {
	dest := storage.DestinationName(t.Name)
	o := Outcome{Table: dest, Sent: int64(len(t.Rows))}

	fail := func(stage string, err error) Outcome {
		o.Status = StatusFailure
		o.Err = &TableLoadError{Table: dest, Stage: stage, Err: err}
		return o
	}

	if l.Repo == nil {
		return fail("create", fmt.Errorf("no warehouse repository"))
	}

	cols, err := storage.DestinationColumns(t, l.Repo.ColumnDDLType)
	if err != nil {
		return fail("schema", err)
	}

	l.logger()("Uploading table: %s (%d rows)", dest, len(t.Rows))
	if l.Verbose {
		l.logger()("  columns: %s", describeColumns(cols))
	}

	if err := l.Repo.ReplaceTable(ctx, dest, cols); err != nil {
		return fail("create", err)
	}

	n, err := l.Repo.BulkLoad(ctx, dest, cols, t.Rows)
	if err != nil {
		return fail("load", err)
	}
	o.Rows = n
	if n < o.Sent {
		o.Status = StatusPartial
	} else {
		o.Status = StatusSuccess
	}
	return o
}

func describeColumns(cols []storage.DestColumn) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c.Name + " " + c.DDLType
	}
	return strings.Join(parts, ", ")
}

func (l *Loader) logger() func(format string, v ...any) {
	if l.Logger == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return l.Logger.Printf
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }
