// Package uploads stores screenshot files on disk and prunes them after a
// retention window. Screenshots exist only to be re-read per analysis
// request; nothing references them once the turn is over.
package uploads

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store writes screenshots under dir with unique names.
type Store struct {
	dir string
}

// NewStore creates the uploads directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the uploads directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes r to a new uniquely named file, keeping the original
// extension so media type inference still works, and returns the path.
func (s *Store) Save(r io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if len(ext) > 8 {
		ext = ""
	}
	path := filepath.Join(s.dir, uuid.New().String()+ext)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing upload: %w", err)
	}
	return path, nil
}

// Read loads the file contents fresh from disk. Callers must never hold a
// cached copy across requests.
func (s *Store) Read(path string) ([]byte, error) {
	// Refuse paths outside the uploads dir.
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("path %q is outside uploads dir", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	return data, nil
}

// Remove deletes one stored screenshot. Missing files are not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing upload: %w", err)
	}
	return nil
}
