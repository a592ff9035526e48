package extract

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"accessetl/internal/fetch"
	"accessetl/internal/storage"
)

// buildSourceDB writes a SQLite file with Customers (5 rows) and Orders
// (10 rows) and returns its bytes.
func buildSourceDB(t *testing.T) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "source.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE Customers (CustomerID INTEGER, Name TEXT, Balance REAL)`,
		`CREATE TABLE Orders (OrderID INTEGER, CustomerID INTEGER, Amount REAL, Notes TEXT)`,
	}
	for i := 1; i <= 5; i++ {
		stmts = append(stmts, fmt.Sprintf(`INSERT INTO Customers VALUES (%d, 'Customer %d', %d.5)`, i, i, i*10))
	}
	for i := 1; i <= 10; i++ {
		notes := "NULL"
		if i%2 == 0 {
			notes = fmt.Sprintf("'note %d'", i)
		}
		stmts = append(stmts, fmt.Sprintf(`INSERT INTO Orders VALUES (%d, %d, %d, %s)`, i, (i%5)+1, i*3, notes))
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("exec %q: %v", q, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return b
}

func TestExtract_ReadsAllTablesInCatalogOrder(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	e, err := New(Options{TempDir: tmp})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	set, err := e.Extract(context.Background(), fetch.EmbeddedFile{Name: "data/source.sqlite", Data: buildSourceDB(t)})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if got, want := set.Names(), []string{"Customers", "Orders"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Names()=%v, want %v", got, want)
	}

	customers, _ := set.Get("Customers")
	if len(customers.Rows) != 5 {
		t.Fatalf("Customers rows=%d, want 5", len(customers.Rows))
	}
	if got, want := customers.ColumnNames(), []string{"CustomerID", "Name", "Balance"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Customers columns=%v, want %v", got, want)
	}
	wantTypes := []storage.ColumnType{storage.Integer, storage.Text, storage.Float}
	for i, c := range customers.Columns {
		if c.Type != wantTypes[i] {
			t.Fatalf("Customers.%s type=%s, want %s", c.Name, c.Type, wantTypes[i])
		}
	}
	if got, want := customers.Rows[0], []any{int64(1), "Customer 1", 10.5}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Customers row 0=%#v, want %#v", got, want)
	}

	orders, _ := set.Get("Orders")
	if len(orders.Rows) != 10 {
		t.Fatalf("Orders rows=%d, want 10", len(orders.Rows))
	}
	if orders.Rows[0][3] != nil {
		t.Fatalf("Orders row 0 Notes=%#v, want nil", orders.Rows[0][3])
	}
	if orders.Rows[1][3] != "note 2" {
		t.Fatalf("Orders row 1 Notes=%#v, want note 2", orders.Rows[1][3])
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp dir not cleaned up: %d entries left", len(entries))
	}
}

func TestExtract_OpenErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file fetch.EmbeddedFile
	}{
		{"garbage bytes", fetch.EmbeddedFile{Name: "broken.sqlite", Data: []byte("this is not a database file at all, not even close")}},
		{"unknown extension", fetch.EmbeddedFile{Name: "report.xlsx", Data: []byte("x")}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tmp := t.TempDir()
			e, err := New(Options{TempDir: tmp})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			_, err = e.Extract(context.Background(), tt.file)
			var openErr *DatabaseOpenError
			if !errors.As(err, &openErr) {
				t.Fatalf("Extract err=%v, want *DatabaseOpenError", err)
			}
			if openErr.Name != tt.file.Name {
				t.Fatalf("Name=%q, want %q", openErr.Name, tt.file.Name)
			}
			entries, _ := os.ReadDir(tmp)
			if len(entries) != 0 {
				t.Fatalf("temp dir not cleaned up: %d entries left", len(entries))
			}
		})
	}
}

func TestExtract_TableReadErrorFromDriver(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	e, err := New(Options{TempDir: tmp})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sqlite := builtinDrivers[".sqlite"]
	e.RegisterDriver(".fake", Driver{
		Name: "fake",
		Open: sqlite.Open,
		ListTables: func(ctx context.Context, db *sql.DB, _ Target) ([]string, error) {
			return []string{"Customers", "Missing"}, nil
		},
		Quote: doubleQuote,
	})

	_, err = e.Extract(context.Background(), fetch.EmbeddedFile{Name: "source.FAKE", Data: buildSourceDB(t)})
	var readErr *TableReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("Extract err=%v, want *TableReadError", err)
	}
	if readErr.Table != "Missing" {
		t.Fatalf("Table=%q, want Missing", readErr.Table)
	}
	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp dir not cleaned up: %d entries left", len(entries))
	}
}

func TestNew_UnknownCharset(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{Charset: "no-such-charset"}); err == nil {
		t.Fatalf("expected error for unknown charset")
	}
}

func TestNormalize_DecodesCharset(t *testing.T) {
	t.Parallel()

	e, err := New(Options{Charset: "windows-1252"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// 0xE9 is é in windows-1252.
	if got := e.normalize([]byte{'c', 'a', 'f', 0xE9}); got != "café" {
		t.Fatalf("normalize=%q, want café", got)
	}

	plain, _ := New(Options{})
	if got := plain.normalize([]byte("abc")); got != "abc" {
		t.Fatalf("normalize=%q, want abc", got)
	}
	if got := plain.normalize(int32(7)); got != int64(7) {
		t.Fatalf("normalize(int32)=%#v, want int64(7)", got)
	}
	if got := plain.normalize(float32(1.5)); got != 1.5 {
		t.Fatalf("normalize(float32)=%#v, want 1.5", got)
	}
}

func TestInferColumnType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		vals []any
		want storage.ColumnType
	}{
		{"all ints", []any{int64(1), int64(2)}, storage.Integer},
		{"ints with null", []any{int64(1), nil, int64(3)}, storage.Integer},
		{"mixed numeric", []any{int64(1), 2.5}, storage.Float},
		{"floats", []any{1.0, 2.0}, storage.Float},
		{"numeric strings", []any{"1", "2"}, storage.Text},
		{"number and string", []any{int64(1), "x"}, storage.Text},
		{"bools", []any{true, false}, storage.Text},
		{"all null", []any{nil, nil}, storage.Text},
		{"empty", nil, storage.Text},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rows := make([][]any, len(tt.vals))
			for i, v := range tt.vals {
				rows[i] = []any{v}
			}
			if got := inferColumnType(rows, 0); got != tt.want {
				t.Fatalf("inferColumnType=%s, want %s", got, tt.want)
			}
		})
	}
}

func TestCoerce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		typ  storage.ColumnType
		want any
	}{
		{nil, storage.Integer, nil},
		{int64(3), storage.Integer, int64(3)},
		{int64(3), storage.Float, float64(3)},
		{2.5, storage.Float, 2.5},
		{true, storage.Text, "true"},
		{int64(12), storage.Text, "12"},
		{"abc", storage.Text, "abc"},
	}
	for _, tt := range tests {
		if got := coerce(tt.in, tt.typ); got != tt.want {
			t.Fatalf("coerce(%#v, %s)=%#v, want %#v", tt.in, tt.typ, got, tt.want)
		}
	}
}

func TestAccessDSN(t *testing.T) {
	t.Parallel()

	got := accessDSN("Microsoft Access Driver (*.mdb, *.accdb)", `C:\tmp\a}b.accdb`)
	want := `Driver={Microsoft Access Driver (*.mdb, *.accdb)};DBQ={C:\tmp\a}}b.accdb};`
	if got != want {
		t.Fatalf("accessDSN=%q, want %q", got, want)
	}
}

func TestAccessSystemTables(t *testing.T) {
	t.Parallel()

	for _, n := range []string{"MSysObjects", "msysACEs", "~TMPCLP1234"} {
		if !isAccessSystemTable(n) {
			t.Fatalf("%s should be a system table", n)
		}
	}
	for _, n := range []string{"Customers", "Order Details", "SysUsers"} {
		if isAccessSystemTable(n) {
			t.Fatalf("%s should be a user table", n)
		}
	}
	if got := bracketQuote("Order]Details"); got != "[Order]]Details]" {
		t.Fatalf("bracketQuote=%q", got)
	}
}
