// Package blob stores file bytes under a root directory of an afero filesystem.
// It backs the drivers that keep metadata elsewhere.
package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// ErrNotFound indicates no blob exists at a storage path
var ErrNotFound = errors.New("blob not found")

// Store writes blobs below root
type Store struct {
	mu   sync.Mutex
	fs   afero.Fs
	root string
}

// New creates a store rooted at root on fs, creating the directory if needed
func New(fs afero.Fs, root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("blob root directory is required")
	}
	if err := fs.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &Store{fs: fs, root: filepath.Clean(root)}, nil
}

// NewOS creates a store on the local disk
func NewOS(root string) (*Store, error) {
	return New(afero.NewOsFs(), root)
}

// Root returns the root directory
func (s *Store) Root() string {
	return s.root
}

// Put copies the local file at src below root at logicalPath and returns the
// storage path. If logicalPath is taken the base name is prefixed with uid.
func (s *Store) Put(uid, src, logicalPath string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	s.mu.Lock()
	dst := s.resolve(logicalPath)
	if s.taken(dst) {
		dir, base := path.Split(logicalPath)
		dst = s.resolve(dir + uid + "-" + base)
	}
	// the exclusive .part file reserves dst until the rename
	part := dst + ".part"
	if err := s.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	out, err := s.fs.OpenFile(part, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	s.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("failed to create blob: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		s.fs.Remove(part)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := out.Close(); err != nil {
		s.fs.Remove(part)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := s.fs.Rename(part, dst); err != nil {
		s.fs.Remove(part)
		return "", fmt.Errorf("failed to commit blob: %w", err)
	}

	return dst, nil
}

// Open opens the blob at storagePath
func (s *Store) Open(storagePath string) (io.ReadCloser, error) {
	if !s.within(storagePath) {
		return nil, fmt.Errorf("storage path %q is outside %q", storagePath, s.root)
	}
	f, err := s.fs.Open(storagePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// Remove deletes the blob and prunes empty parent directories up to root
func (s *Store) Remove(storagePath string) error {
	if !s.within(storagePath) {
		return fmt.Errorf("storage path %q is outside %q", storagePath, s.root)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(storagePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	s.cleanupEmptyDirectories(filepath.Dir(storagePath))
	return nil
}

// cleanupEmptyDirectories recursively removes empty directories up to root
func (s *Store) cleanupEmptyDirectories(dir string) {
	if dir == s.root || !s.within(dir) {
		return
	}
	if empty, err := afero.IsEmpty(s.fs, dir); err == nil && empty {
		if s.fs.Remove(dir) == nil {
			s.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}

func (s *Store) taken(dst string) bool {
	for _, p := range []string{dst, dst + ".part"} {
		if ok, _ := afero.Exists(s.fs, p); ok {
			return true
		}
	}
	return false
}

func (s *Store) resolve(logicalPath string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+logicalPath)))
}

func (s *Store) within(p string) bool {
	rel, err := filepath.Rel(s.root, filepath.Clean(p))
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
