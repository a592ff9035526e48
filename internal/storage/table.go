// Package storage holds the table model shared by the extractor, the loader
// and the warehouse backends, plus the backend registry.
package storage

import "fmt"

// ColumnType is the coarse scalar type inferred for a source column.
type ColumnType int

const (
	// Text is the fallback for anything that is not purely numeric.
	Text ColumnType = iota
	Integer
	Float
)

func (t ColumnType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Float:
		return "float"
	default:
		return "text"
	}
}

type Column struct {
	Name string
	Type ColumnType
}

// Table is one relation read from the source database.
//
// Rows are aligned to Columns. After extraction every value is one of
// nil, int64, float64 or string, matching the column's Type.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// ColumnNames returns the column names in catalog order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// TableSet maps table name to Table and remembers insertion order, which is
// the order the source catalog listed the tables in.
type TableSet struct {
	order  []string
	tables map[string]*Table
}

func NewTableSet() *TableSet {
	return &TableSet{tables: map[string]*Table{}}
}

// Add inserts t. Adding a second table with the same name is an error.
func (s *TableSet) Add(t *Table) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("tableset: table name is empty")
	}
	if _, exists := s.tables[t.Name]; exists {
		return fmt.Errorf("tableset: duplicate table %q", t.Name)
	}
	s.tables[t.Name] = t
	s.order = append(s.order, t.Name)
	return nil
}

func (s *TableSet) Get(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

func (s *TableSet) Len() int { return len(s.order) }

// Names returns table names in read order.
func (s *TableSet) Names() []string {
	return append([]string(nil), s.order...)
}

// Tables returns the tables in read order.
func (s *TableSet) Tables() []*Table {
	out := make([]*Table, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.tables[n])
	}
	return out
}
