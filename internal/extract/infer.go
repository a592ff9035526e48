package extract

import (
	"math"

	"accessetl/internal/storage"
)

// inferColumnType picks the narrowest type that fits every non-null value
// in column col:
//
//	all int64            -> Integer
//	all int64 or float64 -> Float
//	anything else        -> Text
//
// A column with no non-null values is Text. Strings stay Text even when
// they look numeric; values are inspected by Go type, not parsed.
func inferColumnType(rows [][]any, col int) storage.ColumnType {
	seen := false
	allInt := true

	for _, r := range rows {
		if col >= len(r) || r[col] == nil {
			continue
		}
		seen = true
		switch r[col].(type) {
		case int64:
		case float64:
			allInt = false
		default:
			return storage.Text
		}
	}

	switch {
	case !seen:
		return storage.Text
	case allInt:
		return storage.Integer
	default:
		return storage.Float
	}
}

// coerce converts v to the canonical Go type for t. nil stays nil.
func coerce(v any, t storage.ColumnType) any {
	if v == nil {
		return nil
	}
	switch t {
	case storage.Integer:
		return v
	case storage.Float:
		if i, ok := v.(int64); ok {
			return float64(i)
		}
		return v
	default:
		return storage.TextValue(v)
	}
}

// normalize folds driver-specific scalar types into the small set the
// inference understands: int64, float64, string, bool, time.Time.
func (e *Extractor) normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return e.decodeText(t)
	case string:
		return t
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		if t <= math.MaxInt64 {
			return int64(t)
		}
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

func (e *Extractor) decodeText(b []byte) string {
	if e.decoder == nil {
		return string(b)
	}
	s, err := e.decoder.Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
