package pipeline

import "fmt"

// ValidationError reports a single row that failed required-field validation
// or a type cast. Recoverable: the row is skipped and counted, the batch
// continues.
type ValidationError struct {
	Source string
	Row    int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s row %d: field %q: %s", e.Source, e.Row, e.Field, e.Reason)
}

// SourceFormatError reports a batch whose overall shape does not match the
// expected schema, e.g. a required column missing entirely. Fatal for that
// source's batch.
type SourceFormatError struct {
	Source  string
	Missing []string
}

func (e *SourceFormatError) Error() string {
	return fmt.Sprintf("%s batch: missing required columns %v", e.Source, e.Missing)
}

// LoadError reports a failed warehouse write for one table. Sibling tables
// still attempt to load; the run ends as partial success.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
