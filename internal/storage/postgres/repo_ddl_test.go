package postgres

import (
	"strings"
	"testing"

	"accessetl/internal/storage"
)

func TestBuildCreateSQL_QuotesNamesAndMapsTypes(t *testing.T) {
	t.Parallel()

	r := &Repo{}
	cols := []storage.DestColumn{
		{Name: "ORDERID", DDLType: r.ColumnDDLType(storage.Integer)},
		{Name: "UNIT PRICE", DDLType: r.ColumnDDLType(storage.Float)},
		{Name: "NOTES", DDLType: r.ColumnDDLType(storage.Text)},
	}

	got, err := buildCreateSQL("ORDER DETAILS", cols)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	for _, want := range []string{
		`CREATE TABLE "ORDER DETAILS"`,
		`"ORDERID" BIGINT`,
		`"UNIT PRICE" DOUBLE PRECISION`,
		`"NOTES" TEXT`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("sql missing %q: %q", want, got)
		}
	}
}

func TestBuildCreateSQL_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		table string
		cols  []storage.DestColumn
	}{
		{"empty table", " ", []storage.DestColumn{{Name: "A", DDLType: "TEXT"}}},
		{"no columns", "T", nil},
		{"missing type", "T", []storage.DestColumn{{Name: "A"}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := buildCreateSQL(tt.table, tt.cols); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestPgIdent_EscapesQuotes(t *testing.T) {
	t.Parallel()

	if got := pgIdent(`A"B`); got != `"A""B"` {
		t.Fatalf("pgIdent=%q", got)
	}
}
