package storage

import (
	"context"
	"io"
)

// CoverStorage stores book cover images. The local implementation is
// the default; the interface leaves room for a cloud backend.
type CoverStorage interface {
	// Save writes the cover for a book, replacing any previous one.
	Save(ctx context.Context, bookID string, contentType string, r io.Reader) error
	// Open returns the cover and its content type. ErrCoverNotFound
	// when the book has no cover.
	Open(ctx context.Context, bookID string) (io.ReadCloser, string, error)
	// Delete removes the cover. A no-op when none exists.
	Delete(ctx context.Context, bookID string) error
}
