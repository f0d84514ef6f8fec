package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrCoverNotFound is returned by Open when a book has no stored cover.
var ErrCoverNotFound = errors.New("cover not found")

var extByContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// LocalCoverStorage keeps covers on the local filesystem, one file per
// book named by the book id. Suitable for a single-node deployment.
type LocalCoverStorage struct {
	dir string
}

func NewLocalCoverStorage(dir string) (*LocalCoverStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create covers directory: %w", err)
	}
	return &LocalCoverStorage{dir: dir}, nil
}

func (s *LocalCoverStorage) Save(ctx context.Context, bookID string, contentType string, r io.Reader) error {
	ext, ok := extByContentType[contentType]
	if !ok {
		return fmt.Errorf("unsupported cover content type %q", contentType)
	}

	// Replace any cover stored under a different extension first.
	if err := s.Delete(ctx, bookID); err != nil {
		return err
	}

	// Write to a temp file and rename so a crash mid-write never
	// leaves a truncated cover behind.
	tmp, err := os.CreateTemp(s.dir, bookID+".*")
	if err != nil {
		return fmt.Errorf("create cover file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cover: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, bookID+ext))
}

func (s *LocalCoverStorage) Open(ctx context.Context, bookID string) (io.ReadCloser, string, error) {
	path, contentType, err := s.find(bookID)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return f, contentType, nil
}

func (s *LocalCoverStorage) Delete(ctx context.Context, bookID string) error {
	path, _, err := s.find(bookID)
	if errors.Is(err, ErrCoverNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (s *LocalCoverStorage) find(bookID string) (path, contentType string, err error) {
	// Book ids are UUIDs; reject anything that could traverse paths.
	if strings.ContainsAny(bookID, "/\\.") {
		return "", "", ErrCoverNotFound
	}
	for contentType, ext := range extByContentType {
		path := filepath.Join(s.dir, bookID+ext)
		if _, err := os.Stat(path); err == nil {
			return path, contentType, nil
		}
	}
	return "", "", ErrCoverNotFound
}
