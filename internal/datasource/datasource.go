// Package datasource defines where pipeline tables are read from.
package datasource

import (
	"context"
	"io"
)

// Source opens a readable stream of CSV bytes.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
