package table

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"

	"salesetl/internal/datasource"
	"salesetl/internal/datasource/file"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

var (
	// ErrNoHeader is returned for an input without a header row.
	ErrNoHeader = errors.New("csv has no header row")

	// ErrRowWidth is returned for a row with more fields than the header.
	ErrRowWidth = errors.New("row wider than header")
)

// ReadFile loads the CSV file at path.
func ReadFile(ctx context.Context, path string) (*Table, error) {
	t, err := Read(ctx, file.NewLocal(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// Read loads a whole CSV stream from src. The first record is the header.
// Header names are NFC-normalized and a leading UTF-8 BOM is removed; cell
// values are kept verbatim. Rows shorter than the header are padded with
// blank cells; longer rows are an error.
func Read(ctx context.Context, src datasource.Source) (*Table, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	cr := csv.NewReader(rc)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	t := &Table{Columns: normalizeHeaders(header)}
	width := len(t.Columns)

	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		switch {
		case len(row) > width:
			fpl, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w: %d fields, header has %d", fpl, ErrRowWidth, len(row), width)
		case len(row) < width:
			row = append(row, make([]string, width-len(row))...)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func normalizeHeaders(h []string) []string {
	out := make([]string, len(h))
	for i, c := range h {
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		out[i] = norm.NFC.String(c)
	}
	return out
}
