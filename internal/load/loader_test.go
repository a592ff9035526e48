package load

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"accessetl/internal/storage"
)

type fakeRepo struct {
	failCreate map[string]error
	failLoad   map[string]error
	short      map[string]int64

	created []string
	loaded  map[string][][]any
	schemas map[string][]storage.DestColumn
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		failCreate: map[string]error{},
		failLoad:   map[string]error{},
		short:      map[string]int64{},
		loaded:     map[string][][]any{},
		schemas:    map[string][]storage.DestColumn{},
	}
}

func (f *fakeRepo) Close() {}

func (f *fakeRepo) ColumnDDLType(t storage.ColumnType) string {
	switch t {
	case storage.Integer:
		return "NUMBER(38,0)"
	case storage.Float:
		return "FLOAT"
	default:
		return "VARCHAR(16777216)"
	}
}

func (f *fakeRepo) ReplaceTable(ctx context.Context, table string, cols []storage.DestColumn) error {
	if err := f.failCreate[table]; err != nil {
		return err
	}
	f.created = append(f.created, table)
	f.schemas[table] = cols
	delete(f.loaded, table)
	return nil
}

func (f *fakeRepo) BulkLoad(ctx context.Context, table string, cols []storage.DestColumn, rows [][]any) (int64, error) {
	if err := f.failLoad[table]; err != nil {
		return 0, err
	}
	f.loaded[table] = rows
	n := int64(len(rows))
	if s, ok := f.short[table]; ok {
		n = s
	}
	return n, nil
}

func tableSet(t *testing.T, tables ...*storage.Table) *storage.TableSet {
	t.Helper()
	s := storage.NewTableSet()
	for _, tb := range tables {
		if err := s.Add(tb); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return s
}

func rowsOf(n int) [][]any {
	out := make([][]any, n)
	for i := range out {
		out[i] = []any{int64(i)}
	}
	return out
}

func idTable(name string, n int) *storage.Table {
	return &storage.Table{
		Name:    name,
		Columns: []storage.Column{{Name: "id", Type: storage.Integer}},
		Rows:    rowsOf(n),
	}
}

func TestLoad_FailureOnOneTableDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.failCreate["B"] = errors.New("insufficient privileges")

	l := &Loader{Repo: repo}
	rep := l.Load(context.Background(), tableSet(t, idTable("a", 3), idTable("b", 4), idTable("c", 5)))

	if len(rep.Outcomes) != 3 {
		t.Fatalf("outcomes=%d, want 3", len(rep.Outcomes))
	}
	wantStatus := []Status{StatusSuccess, StatusFailure, StatusSuccess}
	wantRows := []int64{3, 0, 5}
	for i, o := range rep.Outcomes {
		if o.Status != wantStatus[i] || o.Rows != wantRows[i] {
			t.Fatalf("outcome[%d]=%+v, want %s(%d)", i, o, wantStatus[i], wantRows[i])
		}
	}

	var loadErr *TableLoadError
	if !errors.As(rep.Outcomes[1].Err, &loadErr) {
		t.Fatalf("outcome[1].Err=%v, want *TableLoadError", rep.Outcomes[1].Err)
	}
	if loadErr.Table != "B" || loadErr.Stage != "create" {
		t.Fatalf("TableLoadError=%+v", loadErr)
	}
	if !strings.Contains(rep.Outcomes[1].String(), "insufficient privileges") {
		t.Fatalf("failure text missing cause: %s", rep.Outcomes[1])
	}
	if rep.Failed() != 1 {
		t.Fatalf("Failed()=%d, want 1", rep.Failed())
	}
	if got, want := repo.created, []string{"A", "C"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("created=%v, want %v", got, want)
	}
}

func TestLoad_PartialAndBulkFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.short["PARTIAL"] = 7
	repo.failLoad["BROKEN"] = errors.New("copy failed")

	l := &Loader{Repo: repo}
	rep := l.Load(context.Background(), tableSet(t, idTable("Partial", 10), idTable("Broken", 2)))

	p, _ := rep.Get("PARTIAL")
	if p.Status != StatusPartial || p.Rows != 7 || p.Sent != 10 {
		t.Fatalf("PARTIAL=%+v", p)
	}
	b, _ := rep.Get("BROKEN")
	var loadErr *TableLoadError
	if b.Status != StatusFailure || !errors.As(b.Err, &loadErr) || loadErr.Stage != "load" {
		t.Fatalf("BROKEN=%+v", b)
	}
	if !strings.Contains(rep.Summary(), "PARTIAL: partial(7 of 10)\n") {
		t.Fatalf("Summary()=%q", rep.Summary())
	}
}

func TestLoad_UpperCasesNamesAndMapsTypes(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	l := &Loader{Repo: repo}
	orders := &storage.Table{
		Name: "Orders",
		Columns: []storage.Column{
			{Name: "OrderID", Type: storage.Integer},
			{Name: "Amount", Type: storage.Float},
			{Name: "Notes", Type: storage.Text},
		},
		Rows: [][]any{{int64(1), 2.5, nil}},
	}
	rep := l.Load(context.Background(), tableSet(t, orders))

	if got := rep.Summary(); got != "ORDERS: success(1)\n" {
		t.Fatalf("Summary()=%q", got)
	}
	want := "ORDERID NUMBER(38,0), AMOUNT FLOAT, NOTES VARCHAR(16777216)"
	if got := describeColumns(repo.schemas["ORDERS"]); got != want {
		t.Fatalf("schema=%q, want %q", got, want)
	}
}

func TestLoad_Idempotent(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	l := &Loader{Repo: repo}
	set := tableSet(t, idTable("Customers", 5))

	first := l.Load(context.Background(), set)
	second := l.Load(context.Background(), set)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("reports differ: %+v vs %+v", first, second)
	}
	if len(repo.loaded["CUSTOMERS"]) != 5 {
		t.Fatalf("rows=%d, want 5", len(repo.loaded["CUSTOMERS"]))
	}
}

func TestLoad_BlankColumnNameIsSchemaFailure(t *testing.T) {
	t.Parallel()

	l := &Loader{Repo: newFakeRepo()}
	bad := &storage.Table{Name: "X", Columns: []storage.Column{{Name: " "}}}
	rep := l.Load(context.Background(), tableSet(t, bad))

	var loadErr *TableLoadError
	if !errors.As(rep.Outcomes[0].Err, &loadErr) || loadErr.Stage != "schema" {
		t.Fatalf("outcome=%+v", rep.Outcomes[0])
	}
}
