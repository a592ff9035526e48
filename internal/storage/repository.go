package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a warehouse repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//   - Options carries backend knobs that do not fit a DSN (e.g. Snowflake
//     ON_ERROR). Unknown keys are ignored by backends.
type Config struct {
	Kind    string
	DSN     string
	Options map[string]string
}

// Option returns Options[key] or def when unset.
func (c Config) Option(key, def string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// Repository is the backend-agnostic warehouse interface used by the loader.
//
// Each backend implements create-or-replace and its own bulk path (Snowflake
// PUT+COPY, Postgres COPY, SQL Server bulk copy, SQLite batched inserts).
type Repository interface {
	// Close releases the connection. Call once when all tables are loaded.
	Close()

	// ReplaceTable drops any existing destination table and creates it fresh
	// with the given columns. Column names and types are destination-side
	// (already upper-cased and mapped).
	ReplaceTable(ctx context.Context, table string, columns []DestColumn) error

	// BulkLoad inserts rows into table and returns how many rows the
	// warehouse reports as loaded. A nil error with n < len(rows) means the
	// warehouse accepted only part of the data.
	BulkLoad(ctx context.Context, table string, columns []DestColumn, rows [][]any) (int64, error)

	// ColumnDDLType maps an inferred source type to the backend's column type.
	ColumnDDLType(t ColumnType) string
}

// DestColumn is a destination column: upper-cased name, source type and the
// backend DDL type derived from it.
type DestColumn struct {
	Name    string
	Source  ColumnType
	DDLType string
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a warehouse backend under a kind (e.g. "snowflake").
//
// Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f func(ctx context.Context, cfg Config) (Repository, error)) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New opens a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
