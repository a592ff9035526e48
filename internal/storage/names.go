package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DestinationName converts a source table or column name to the destination
// identifier: the same text, upper-cased. No other normalization is applied,
// so names with spaces stay that way and must be quoted by backends.
func DestinationName(name string) string {
	return strings.ToUpper(name)
}

// DestinationColumns derives destination columns for t using repo's mapping.
func DestinationColumns(t *Table, mapType func(ColumnType) string) ([]DestColumn, error) {
	out := make([]DestColumn, 0, len(t.Columns))
	for i, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("table %s: column %d has an empty name", t.Name, i+1)
		}
		out = append(out, DestColumn{
			Name:    DestinationName(c.Name),
			Source:  c.Type,
			DDLType: mapType(c.Type),
		})
	}
	return out, nil
}

// TextValue renders a scalar in the canonical text form used for Text
// columns and for CSV staging files.
func TextValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
