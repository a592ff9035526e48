package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

	"accessetl/internal/storage"
)

// Repo implements storage.Repository for Microsoft SQL Server.
//
// ReplaceTable drops and recreates the table in one transaction
// (DROP TABLE IF EXISTS requires SQL Server 2016 or later).
// BulkLoad uses the driver's bulk copy (INSERT BULK) via mssql.CopyIn.
//
// Note on identifiers:
//   - Table names are bracket-quoted as a single identifier; dots are not
//     treated as schema separators.
//   - Column names are passed to CopyIn unquoted because the driver matches
//     them against the table's metadata.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New opens a SQL Server connection using the "sqlserver" driver and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

func (r *Repo) ColumnDDLType(t storage.ColumnType) string {
	switch t {
	case storage.Integer:
		return "BIGINT"
	case storage.Float:
		return "FLOAT"
	default:
		return "NVARCHAR(MAX)"
	}
}

func (r *Repo) ReplaceTable(ctx context.Context, table string, columns []storage.DestColumn) error {
	createSQL, err := buildCreateSQL(table, columns)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+mssqlIdent(table)); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return tx.Commit()
}

// BulkLoad streams rows through a bulk copy statement inside a transaction.
// The final argument-less Exec flushes the batch and reports the row count.
func (r *Repo) BulkLoad(ctx context.Context, table string, columns []storage.DestColumn, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("mssql: columns empty for table %s", table)
	}

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(mssqlIdent(table), mssql.BulkOptions{Tablock: true}, names...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk copy into %s: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("bulk copy row %d into %s: %w", i+1, table, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("flush bulk copy into %s: %w", table, err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

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
		defs = append(defs, fmt.Sprintf("%s %s NULL", mssqlIdent(c.Name), c.DDLType))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", mssqlIdent(table), strings.Join(defs, ",\n  ")), nil
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
