package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"salesetl/internal/table"
)

func TestClassifyRead(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want any
	}{
		{"not_exist", fmt.Errorf("open x: %w", os.ErrNotExist), &MissingInputError{}},
		{"missing_column", &table.ColumnError{Column: "Price"}, &SchemaError{}},
		{"no_header", table.ErrNoHeader, &SchemaError{}},
		{"row_width", fmt.Errorf("line 3: %w", table.ErrRowWidth), &SchemaError{}},
		{"bad_value", &table.ValueError{Column: "Price", Value: "n/a"}, &SchemaError{}},
		{"permission", os.ErrPermission, &IOError{}},
	}
	for _, tt := range tests {
		got := classifyRead("/data/x.csv", tt.err)
		if fmt.Sprintf("%T", got) != fmt.Sprintf("%T", tt.want) {
			t.Errorf("%s: classifyRead = %T, want %T", tt.name, got, tt.want)
		}
		if !errors.Is(got, tt.err) {
			t.Errorf("%s: classified error does not wrap the cause", tt.name)
		}
	}

	if got := classifyRead("x", context.Canceled); got != context.Canceled {
		t.Errorf("context error was wrapped: %v", got)
	}
}

func TestIsRetriable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{&MissingInputError{Path: "a", Err: os.ErrNotExist}, false},
		{fmt.Errorf("task: %w", &SchemaError{Path: "a", Err: table.ErrNoHeader}), false},
		{&IOError{Op: "write", Path: "a", Err: os.ErrPermission}, true},
		{errors.New("anything else"), true},
	}
	for _, tt := range tests {
		if got := IsRetriable(tt.err); got != tt.want {
			t.Errorf("IsRetriable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestSchemaErrorMessage(t *testing.T) {
	t.Parallel()

	err := &SchemaError{Path: "/tmp/apple_data.csv", Err: &table.ColumnError{Column: "quantity"}}
	want := `schema error in /tmp/apple_data.csv: missing required column: "quantity"`
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, table.ErrMissingColumn) {
		t.Fatal("SchemaError does not unwrap to ErrMissingColumn")
	}
}
