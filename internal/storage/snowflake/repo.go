// Package snowflake is the Snowflake warehouse backend.
//
// Loads go through the table stage: rows are rendered as a gzip CSV in
// memory, uploaded with PUT (streamed, no local file) and ingested with
// COPY INTO. The staged file is purged by COPY.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	sf "github.com/snowflakedb/gosnowflake"

	"accessetl/internal/storage"
)

// Option keys read from storage.Config.Options.
const (
	OptAccount        = "account"
	OptUser           = "user"
	OptPassword       = "password"
	OptAuthenticator  = "authenticator"
	OptWarehouse      = "warehouse"
	OptDatabase       = "database"
	OptSchema         = "schema"
	OptRole           = "role"
	OptToken          = "token"
	OptPrivateKeyPath = "private_key_path"
	OptOnError        = "on_error"
)

const (
	defaultOnError = "ABORT_STATEMENT"
	stagedFileName = "data.csv.gz"
)

// Repo implements storage.Repository for Snowflake.
type Repo struct {
	db      *sql.DB
	onError string
}

func init() {
	storage.Register("snowflake", New)
}

// New opens a Snowflake connection. cfg.DSN wins when set; otherwise the DSN
// is assembled from cfg.Options.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	dsn := cfg.DSN
	if dsn == "" {
		sc, err := buildConfig(cfg)
		if err != nil {
			return nil, err
		}
		dsn, err = sf.DSN(sc)
		if err != nil {
			return nil, fmt.Errorf("snowflake: build dsn: %w", err)
		}
	}

	onError, err := normalizeOnError(cfg.Option(OptOnError, defaultOnError))
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("snowflake: connect: %w", err)
	}
	return &Repo{db: db, onError: onError}, nil
}

func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// ColumnDDLType is the fixed Snowflake mapping.
func (r *Repo) ColumnDDLType(t storage.ColumnType) string {
	return ddlType(t)
}

func ddlType(t storage.ColumnType) string {
	switch t {
	case storage.Integer:
		return "NUMBER(38,0)"
	case storage.Float:
		return "FLOAT"
	default:
		return "VARCHAR(16777216)"
	}
}

func (r *Repo) ReplaceTable(ctx context.Context, table string, columns []storage.DestColumn) error {
	q, err := buildCreateSQL(table, columns)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create or replace table %s: %w", table, err)
	}
	return nil
}

// BulkLoad stages rows with PUT and ingests them with COPY INTO. The returned
// count is Snowflake's rows_loaded, which is lower than len(rows) when
// ON_ERROR lets COPY skip bad records.
func (r *Repo) BulkLoad(ctx context.Context, table string, columns []storage.DestColumn, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("snowflake: columns empty for table %s", table)
	}

	payload, err := encodeCSVGzip(rows)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", table, err)
	}

	putCtx := sf.WithFileStream(ctx, payload)
	if _, err := r.db.ExecContext(putCtx, buildPutSQL(table)); err != nil {
		return 0, fmt.Errorf("put %s: %w", table, err)
	}

	res, err := r.db.QueryContext(ctx, buildCopySQL(table, columns, r.onError))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	defer res.Close()

	cols, records, err := drainRows(res)
	if err != nil {
		return 0, fmt.Errorf("copy into %s: read result: %w", table, err)
	}
	return rowsLoaded(cols, records)
}

func drainRows(rows *sql.Rows) ([]string, [][]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		out = append(out, vals)
	}
	return cols, out, rows.Err()
}

func sfIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// buildCreateSQL renders CREATE OR REPLACE TABLE on a single line, e.g.
//
//	CREATE OR REPLACE TABLE "CUSTOMERS" ("ID" NUMBER(38,0), "NAME" VARCHAR(16777216))
func buildCreateSQL(table string, columns []storage.DestColumn) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("table name is empty")
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", table)
	}
	defs := make([]string, 0, len(columns))
	for _, c := range columns {
		typ := c.DDLType
		if typ == "" {
			typ = ddlType(c.Source)
		}
		defs = append(defs, sfIdent(c.Name)+" "+typ)
	}
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", sfIdent(table), strings.Join(defs, ", ")), nil
}

func tableStage(table string) string {
	return "@%" + sfIdent(table)
}

func buildPutSQL(table string) string {
	return fmt.Sprintf("PUT 'file://%s' %s AUTO_COMPRESS=FALSE SOURCE_COMPRESSION=GZIP OVERWRITE=TRUE",
		stagedFileName, tableStage(table))
}

func buildCopySQL(table string, columns []storage.DestColumn, onError string) string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = sfIdent(c.Name)
	}
	return fmt.Sprintf(
		"COPY INTO %s (%s) FROM %s FILES=('%s') "+
			"FILE_FORMAT=(TYPE=CSV FIELD_OPTIONALLY_ENCLOSED_BY='\"' ESCAPE_UNENCLOSED_FIELD=NONE "+
			"EMPTY_FIELD_AS_NULL=TRUE NULL_IF=() COMPRESSION=GZIP) ON_ERROR=%s PURGE=TRUE",
		sfIdent(table), strings.Join(names, ", "), tableStage(table), stagedFileName, onError)
}

// normalizeOnError accepts the ON_ERROR forms COPY understands.
func normalizeOnError(v string) (string, error) {
	u := strings.ToUpper(strings.TrimSpace(v))
	switch {
	case u == "ABORT_STATEMENT", u == "CONTINUE", u == "SKIP_FILE":
		return u, nil
	case strings.HasPrefix(u, "SKIP_FILE_"):
		return u, nil
	}
	return "", fmt.Errorf("snowflake: unsupported on_error %q (want ABORT_STATEMENT, CONTINUE, SKIP_FILE or SKIP_FILE_<n>)", v)
}

// rowsLoaded sums the rows_loaded column of a COPY INTO result.
// Column lookup is case-insensitive; values may arrive as numbers or text.
func rowsLoaded(cols []string, records [][]any) (int64, error) {
	idx := -1
	for i, c := range cols {
		if strings.EqualFold(c, "rows_loaded") {
			idx = i
			break
		}
	}
	if idx < 0 {
		// "Copy executed with 0 files processed." has a single status column.
		return 0, nil
	}

	var total int64
	for _, rec := range records {
		v := rec[idx]
		if v == nil {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(storage.TextValue(v)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("rows_loaded=%v: %w", v, err)
		}
		total += n
	}
	return total, nil
}
