// Package extract opens the embedded desktop database and reads every user
// table into memory.
package extract

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"accessetl/internal/fetch"
	"accessetl/internal/storage"
)

// Logger is the minimal logging interface used by the extractor.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

type Options struct {
	// ODBCDriver is the Access ODBC driver name used for .accdb/.mdb.
	ODBCDriver string

	// Charset, when set, decodes byte-string values from that code page.
	Charset string

	// TempDir overrides os.TempDir for the materialized database file.
	TempDir string

	Logger Logger
}

// Extractor reads all tables of an embedded database file.
type Extractor struct {
	drivers    map[string]Driver
	odbcDriver string
	tempDir    string
	decoder    *encoding.Decoder
	logger     Logger
}

// New returns an Extractor with the built-in drivers. It fails only when
// opts.Charset is not a known encoding.
func New(opts Options) (*Extractor, error) {
	e := &Extractor{
		drivers:    make(map[string]Driver, len(builtinDrivers)),
		odbcDriver: opts.ODBCDriver,
		tempDir:    opts.TempDir,
		logger:     opts.Logger,
	}
	for ext, d := range builtinDrivers {
		e.drivers[ext] = d
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard, "", 0)
	}
	if opts.Charset != "" {
		enc, err := ianaindex.IANA.Encoding(opts.Charset)
		if err != nil || enc == nil {
			return nil, fmt.Errorf("unknown source charset %q", opts.Charset)
		}
		e.decoder = enc.NewDecoder()
	}
	return e, nil
}

// RegisterDriver installs d for files ending in ext (case-insensitive).
func (e *Extractor) RegisterDriver(ext string, d Driver) {
	e.drivers[strings.ToLower(ext)] = d
}

// Extensions lists the file extensions this extractor can open.
func (e *Extractor) Extensions() []string {
	out := make([]string, 0, len(e.drivers))
	for k := range e.drivers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Extract writes file to a temporary path, opens it with the driver chosen
// by its extension and reads every user table. The temporary file is
// removed before Extract returns.
//
// Errors:
//   - *DatabaseOpenError when the file cannot be written, opened or catalogued.
//   - *TableReadError for the first table that fails; no later table is read.
func (e *Extractor) Extract(ctx context.Context, file fetch.EmbeddedFile) (*storage.TableSet, error) {
	ext := strings.ToLower(filepath.Ext(file.Name))
	drv, ok := e.drivers[ext]
	if !ok {
		return nil, &DatabaseOpenError{Name: file.Name, Err: fmt.Errorf("no driver for %q files (supported: %v)", ext, e.Extensions())}
	}

	path, cleanup, err := e.materialize(file.Data, ext)
	if err != nil {
		return nil, &DatabaseOpenError{Name: file.Name, Driver: drv.Name, Err: err}
	}
	defer cleanup()

	target := Target{Path: path, ODBCDriver: e.odbcDriver}
	db, err := drv.Open(target)
	if err != nil {
		return nil, &DatabaseOpenError{Name: file.Name, Driver: drv.Name, Err: err}
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, &DatabaseOpenError{Name: file.Name, Driver: drv.Name, Err: err}
	}

	names, err := drv.ListTables(ctx, db, target)
	if err != nil {
		return nil, &DatabaseOpenError{Name: file.Name, Driver: drv.Name, Err: err}
	}
	e.logger.Printf("Found %d tables in %s: %s", len(names), file.Name, strings.Join(names, ", "))

	set := storage.NewTableSet()
	for _, name := range names {
		start := time.Now()
		t, err := e.readTable(ctx, db, name, drv.Quote(name))
		if err != nil {
			return nil, &TableReadError{Table: name, Err: err}
		}
		if err := set.Add(t); err != nil {
			return nil, &TableReadError{Table: name, Err: err}
		}
		e.logger.Printf("Read table: %s (%d rows, %d columns) in %s",
			name, len(t.Rows), len(t.Columns), time.Since(start).Truncate(time.Millisecond))
	}
	return set, nil
}

// materialize writes data to a uniquely named temp file keeping ext, which
// some drivers (Access ODBC) require.
func (e *Extractor) materialize(data []byte, ext string) (string, func(), error) {
	f, err := os.CreateTemp(e.tempDir, "accessetl-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return path, cleanup, nil
}

func (e *Extractor) readTable(ctx context.Context, db *sql.DB, name, quoted string) (*storage.Table, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var data [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			vals[i] = e.normalize(v)
		}
		data = append(data, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	t := &storage.Table{Name: name, Columns: make([]storage.Column, len(cols)), Rows: data}
	for i, c := range cols {
		t.Columns[i] = storage.Column{Name: c, Type: inferColumnType(data, i)}
	}
	for _, r := range data {
		for i := range r {
			r[i] = coerce(r[i], t.Columns[i].Type)
		}
	}
	return t, nil
}
