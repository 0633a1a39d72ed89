// Package storage provides the file store backing avatar and post
// image uploads. The current implementation writes to local disk; the
// Store interface keeps an object store swappable.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
)

// ErrUnsupportedType indicates the uploaded file is not an accepted image.
var ErrUnsupportedType = errors.New("unsupported file type")

// imageExtensions mirrors the classic image upload allow-list.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

// Store saves and removes uploaded files by reference. A reference is a
// bare generated filename, never a client-supplied path.
type Store interface {
	Save(original string, src io.Reader) (ref string, err error)
	Remove(ref string) error
	Path(ref string) string
}

// LocalStore writes uploads to a single directory on local disk.
type LocalStore struct {
	dir     string
	maxSize int64
}

// NewLocalStore creates the upload directory if needed and returns a store.
func NewLocalStore(dir string, maxSize int64) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, maxSize: maxSize}, nil
}

// Save streams src to a freshly named file and returns the reference.
// The original filename contributes only its extension; the stored name
// is generated, which sidesteps collisions and path traversal.
func (s *LocalStore) Save(original string, src io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(original))
	if !imageExtensions[ext] {
		return "", ErrUnsupportedType
	}

	ref := ulid.Make().String() + ext

	dst, err := os.OpenFile(s.Path(ref), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	if s.maxSize > 0 {
		src = io.LimitReader(src, s.maxSize)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(s.Path(ref))
		return "", fmt.Errorf("write file: %w", err)
	}

	if err := dst.Close(); err != nil {
		_ = os.Remove(s.Path(ref))
		return "", fmt.Errorf("close file: %w", err)
	}

	return ref, nil
}

// Remove deletes the backing file for ref. A missing file is not an
// error; the database row is the authority.
func (s *LocalStore) Remove(ref string) error {
	if ref == "" {
		return nil
	}
	if err := os.Remove(s.Path(ref)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// Path returns the on-disk location of ref. The reference is reduced to
// its base name so crafted input cannot escape the upload directory.
func (s *LocalStore) Path(ref string) string {
	return filepath.Join(s.dir, filepath.Base(ref))
}

// Dir returns the root upload directory (used by the static file route).
func (s *LocalStore) Dir() string {
	return s.dir
}
