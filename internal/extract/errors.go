package extract

import "fmt"

// DatabaseOpenError means the embedded file could not be materialized,
// opened or catalogued. It is fatal for the run.
type DatabaseOpenError struct {
	Name   string
	Driver string
	Err    error
}

func (e *DatabaseOpenError) Error() string {
	if e.Driver == "" {
		return fmt.Sprintf("open database %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("open database %s (driver=%s): %v", e.Name, e.Driver, e.Err)
}

func (e *DatabaseOpenError) Unwrap() error { return e.Err }

// TableReadError means one table could not be read. The extractor stops at
// the first such failure.
type TableReadError struct {
	Table string
	Err   error
}

func (e *TableReadError) Error() string {
	return fmt.Sprintf("read table %s: %v", e.Table, e.Err)
}

func (e *TableReadError) Unwrap() error { return e.Err }
