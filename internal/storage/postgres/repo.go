package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"accessetl/internal/storage"
)

/*
Repo implements storage.Repository for Postgres.

ReplaceTable drops and recreates the table inside one transaction so readers
never observe a missing table. BulkLoad streams rows through the COPY
protocol (pgx CopyFrom), which is the Postgres analogue of a staged bulk load.

Table names are used verbatim as a single identifier in the connection's
search_path; no schema splitting is done because destination names are
derived from Access table names, which may contain dots.
*/
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a new Postgres-backed Repo.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

func (r *Repo) ColumnDDLType(t storage.ColumnType) string {
	switch t {
	case storage.Integer:
		return "BIGINT"
	case storage.Float:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

// ReplaceTable runs DROP TABLE IF EXISTS + CREATE TABLE in one transaction.
func (r *Repo) ReplaceTable(ctx context.Context, table string, columns []storage.DestColumn) error {
	createSQL, err := buildCreateSQL(table, columns)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgIdent(table)); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return tx.Commit(ctx)
}

// BulkLoad copies rows with the COPY protocol and returns the copied count.
func (r *Repo) BulkLoad(ctx context.Context, table string, columns []storage.DestColumn, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("postgres: columns empty for table %s", table)
	}

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}

	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{table}, names, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

// buildCreateSQL renders the CREATE TABLE statement.
//
// Constraints:
//   - table must be non-empty.
//   - columns must be non-empty and carry a DDLType.
func buildCreateSQL(table string, columns []storage.DestColumn) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("table name is empty")
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", table)
	}

	defs := make([]string, 0, len(columns))
	for _, c := range columns {
		if c.DDLType == "" {
			return "", fmt.Errorf("table %s: column %s has no type", table, c.Name)
		}
		defs = append(defs, pgIdent(c.Name)+" "+c.DDLType)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", pgIdent(table), strings.Join(defs, ",\n  ")), nil
}

func pgIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
