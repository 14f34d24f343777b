package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Suffixes appended to a column name present on both sides of a join.
const (
	LeftSuffix  = "_x"
	RightSuffix = "_y"
)

// InnerJoin joins left and right where left[leftKey] equals right[rightKey].
//
// Semantics:
//   - Only rows with a match on both sides survive; blank keys never match.
//   - Output rows follow left row order; a left row is repeated once per
//     matching right row, in right row order (fan-out on duplicate keys).
//   - Keys are compared after trimming spaces and canonicalizing numbers, so
//     "7", "7.0" and " 7" are the same key.
//   - Output columns are every left column followed by every right column.
//     When both key columns share a name the right key is omitted. Any other
//     name present on both sides is kept twice, suffixed LeftSuffix and
//     RightSuffix respectively.
func InnerJoin(left, right *Table, leftKey, rightKey string) (*Table, error) {
	li := left.Index(leftKey)
	if li < 0 {
		return nil, fmt.Errorf("join left: %w", &ColumnError{Column: leftKey})
	}
	ri := right.Index(rightKey)
	if ri < 0 {
		return nil, fmt.Errorf("join right: %w", &ColumnError{Column: rightKey})
	}

	mergedKey := leftKey == rightKey

	// Right columns carried into the output.
	keep := make([]int, 0, len(right.Columns))
	for i := range right.Columns {
		if mergedKey && i == ri {
			continue
		}
		keep = append(keep, i)
	}

	leftNames := make(map[string]struct{}, len(left.Columns))
	for _, c := range left.Columns {
		leftNames[c] = struct{}{}
	}
	rightNames := make(map[string]struct{}, len(keep))
	for _, i := range keep {
		rightNames[right.Columns[i]] = struct{}{}
	}

	cols := make([]string, 0, len(left.Columns)+len(keep))
	for _, c := range left.Columns {
		if _, dup := rightNames[c]; dup {
			c += LeftSuffix
		}
		cols = append(cols, c)
	}
	for _, i := range keep {
		c := right.Columns[i]
		if _, dup := leftNames[c]; dup {
			c += RightSuffix
		}
		cols = append(cols, c)
	}

	index := make(map[string][]int, len(right.Rows))
	for r, row := range right.Rows {
		if k, ok := joinKey(row[ri]); ok {
			index[k] = append(index[k], r)
		}
	}

	out := &Table{Columns: cols}
	for _, lrow := range left.Rows {
		k, ok := joinKey(lrow[li])
		if !ok {
			continue
		}
		for _, r := range index[k] {
			rrow := right.Rows[r]
			row := make([]string, 0, len(cols))
			row = append(row, lrow...)
			for _, i := range keep {
				row = append(row, rrow[i])
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// joinKey canonicalizes a key cell. ok is false for blank keys.
func joinKey(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return strconv.FormatInt(int64(f), 10), true
		}
		return strconv.FormatFloat(f, 'g', -1, 64), true
	}
	return s, true
}
