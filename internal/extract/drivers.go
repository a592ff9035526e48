package extract

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Target is the materialized database file a Driver reads.
type Target struct {
	Path string

	// ODBCDriver is the configured ODBC driver name; non-ODBC drivers
	// ignore it.
	ODBCDriver string
}

// Driver opens one family of desktop database files.
type Driver struct {
	// Name is logged and reported in DatabaseOpenError.
	Name string

	Open func(t Target) (*sql.DB, error)

	// ListTables returns user table names in catalog order.
	ListTables func(ctx context.Context, db *sql.DB, t Target) ([]string, error)

	// Quote renders a table name for SELECT * FROM.
	Quote func(name string) string
}

// builtinDrivers maps lower-case file extensions to drivers. Drivers that
// need cgo register themselves from build-tagged files.
var builtinDrivers = map[string]Driver{}

func init() {
	sqliteDriver := Driver{
		Name: "sqlite",
		Open: func(t Target) (*sql.DB, error) {
			return sql.Open("sqlite", "file:"+t.Path+"?mode=ro")
		},
		ListTables: func(ctx context.Context, db *sql.DB, _ Target) ([]string, error) {
			return queryNames(ctx, db,
				`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY rowid`)
		},
		Quote: doubleQuote,
	}
	for _, ext := range []string{".sqlite", ".sqlite3", ".db"} {
		builtinDrivers[ext] = sqliteDriver
	}
}

func queryNames(ctx context.Context, db *sql.DB, q string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func doubleQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// bracketQuote is the Access/Jet identifier form.
func bracketQuote(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// isAccessSystemTable reports catalog entries that are not user data:
// MSys* system tables and ~TMP* temporary objects.
func isAccessSystemTable(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "msys") || strings.HasPrefix(name, "~")
}

// odbcCatalog returns the names of objects of type TABLE reported by the
// ODBC catalog function SQLTables for connStr.
type odbcCatalog func(connStr string) ([]string, error)

const msysObjectsQuery = `SELECT Name FROM MSysObjects WHERE Type = 1 AND Flags = 0`

// accessListTables lists Access user tables through the ODBC catalog. The
// MSysObjects query is only a fallback: the Access driver usually denies
// read permission on it.
func accessListTables(catalog odbcCatalog) func(ctx context.Context, db *sql.DB, t Target) ([]string, error) {
	return func(ctx context.Context, db *sql.DB, t Target) ([]string, error) {
		names, err := catalog(accessDSN(t.ODBCDriver, t.Path))
		if err != nil {
			var ferr error
			names, ferr = queryNames(ctx, db, msysObjectsQuery)
			if ferr != nil {
				return nil, fmt.Errorf("list tables: SQLTables: %v; MSysObjects: %w", err, ferr)
			}
		}
		out := names[:0]
		for _, n := range names {
			if !isAccessSystemTable(n) {
				out = append(out, n)
			}
		}
		return out, nil
	}
}
