package mssql

import (
	"strings"
	"testing"

	"accessetl/internal/storage"
)

func TestMssqlIdent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"ORDERS", "[ORDERS]"},
		{"ORDER DETAILS", "[ORDER DETAILS]"},
		{"A]B", "[A]]B]"},
		{"dbo.T", "[dbo.T]"},
	}
	for _, tt := range tests {
		if got := mssqlIdent(tt.in); got != tt.want {
			t.Fatalf("mssqlIdent(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	r := &Repo{}
	got, err := buildCreateSQL("CUSTOMERS", []storage.DestColumn{
		{Name: "ID", DDLType: r.ColumnDDLType(storage.Integer)},
		{Name: "BALANCE", DDLType: r.ColumnDDLType(storage.Float)},
		{Name: "NAME", DDLType: r.ColumnDDLType(storage.Text)},
	})
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	want := "CREATE TABLE [CUSTOMERS] (\n  [ID] BIGINT NULL,\n  [BALANCE] FLOAT NULL,\n  [NAME] NVARCHAR(MAX) NULL\n);"
	if got != want {
		t.Fatalf("sql=\n%s\nwant\n%s", got, want)
	}

	if _, err := buildCreateSQL("T", []storage.DestColumn{{Name: "A"}}); err == nil || !strings.Contains(err.Error(), "no type") {
		t.Fatalf("expected missing-type error, got %v", err)
	}
}

func TestClose_NilSafe(t *testing.T) {
	t.Parallel()

	var r *Repo
	r.Close()
	(&Repo{}).Close()
}
