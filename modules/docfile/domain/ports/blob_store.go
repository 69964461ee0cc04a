package ports

import (
	"context"
	"io"
)

// BlobStore maps a file record to its stored bytes. The core never
// interprets content; handles are opaque.
type BlobStore interface {
	Store(ctx context.Context, r io.Reader) (handle string, size int64, err error)
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
	Delete(ctx context.Context, handle string) error
}
