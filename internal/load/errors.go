package load

import "fmt"

// TableLoadError records why one table could not be loaded. It is kept in
// the Report and never stops the run.
type TableLoadError struct {
	Table string
	Stage string // "schema", "create" or "load"
	Err   error
}

func (e *TableLoadError) Error() string {
	return fmt.Sprintf("load table %s (%s): %v", e.Table, e.Stage, e.Err)
}

func (e *TableLoadError) Unwrap() error { return e.Err }
