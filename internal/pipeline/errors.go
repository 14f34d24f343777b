package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"

	"salesetl/internal/table"
)

// MissingInputError reports a file a task needs that does not exist. It
// matches os.ErrNotExist.
type MissingInputError struct {
	Path string
	Err  error
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input %s: %v", e.Path, e.Err)
}

func (e *MissingInputError) Unwrap() error { return e.Err }

// SchemaError reports input whose shape or content a task cannot use: a
// missing required column, an unparsable CSV, or a non-numeric value in a
// numeric column.
type SchemaError struct {
	Path string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error in %s: %v", e.Path, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// IOError reports a filesystem failure while writing, moving or rendering.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsRetriable reports whether a retry could change the outcome. Missing
// inputs and schema errors are deterministic; everything else is treated as
// transient.
func IsRetriable(err error) bool {
	var mi *MissingInputError
	var se *SchemaError
	return !errors.As(err, &mi) && !errors.As(err, &se)
}

// classifyRead maps an error from reading path to one of the typed errors.
// Context errors pass through unchanged.
func classifyRead(path string, err error) error {
	var (
		pe *csv.ParseError
		ve *table.ValueError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, os.ErrNotExist):
		return &MissingInputError{Path: path, Err: err}
	case errors.Is(err, table.ErrMissingColumn),
		errors.Is(err, table.ErrNoHeader),
		errors.Is(err, table.ErrRowWidth),
		errors.As(err, &pe),
		errors.As(err, &ve):
		return &SchemaError{Path: path, Err: err}
	default:
		return &IOError{Op: "read", Path: path, Err: err}
	}
}
