//go:build cgo

package extract

import (
	"context"
	"database/sql"

	_ "github.com/alexbrainman/odbc"
	_ "github.com/duckdb/duckdb-go/v2"
)

func init() {
	access := Driver{
		Name: "odbc",
		Open: func(t Target) (*sql.DB, error) {
			return sql.Open("odbc", accessDSN(t.ODBCDriver, t.Path))
		},
		ListTables: accessListTables(sqlTables),
		Quote:      bracketQuote,
	}
	builtinDrivers[".accdb"] = access
	builtinDrivers[".mdb"] = access

	builtinDrivers[".duckdb"] = Driver{
		Name: "duckdb",
		Open: func(t Target) (*sql.DB, error) {
			return sql.Open("duckdb", t.Path+"?access_mode=read_only")
		},
		ListTables: func(ctx context.Context, db *sql.DB, _ Target) ([]string, error) {
			return queryNames(ctx, db,
				`SELECT table_name FROM information_schema.tables
				 WHERE table_schema = 'main' AND table_type = 'BASE TABLE'
				 ORDER BY table_name`)
		},
		Quote: doubleQuote,
	}
}
