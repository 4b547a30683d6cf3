// Package images provides cover image processing and storage.
package images

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage manages cover image filesystem operations.
// Thread-safe for concurrent operations.
type Storage struct {
	basePath string
	mu       sync.RWMutex // Protects file operations
}

// NewStorage creates a new Storage instance.
// basePath should be the data directory; covers are stored in
// {basePath}/images/.
func NewStorage(basePath string) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	storagePath := filepath.Join(basePath, "images")
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return nil, fmt.Errorf("create images directory: %w", err)
	}

	return &Storage{basePath: storagePath}, nil
}

// Save stores image data under the given object name.
func (s *Storage) Save(name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("image data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.Path(name), data, 0o644); err != nil {
		return fmt.Errorf("write image file: %w", err)
	}
	return nil
}

// Get retrieves stored image data by object name.
func (s *Storage) Get(name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image not found: %s: %w", name, err)
		}
		return nil, fmt.Errorf("read image file: %w", err)
	}
	return data, nil
}

// Exists checks whether an object is stored.
func (s *Storage) Exists(name string) bool {
	if validateName(name) != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Delete removes a stored object. Deleting a missing object is not an
// error, so retirement is idempotent.
func (s *Storage) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(name)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete image file: %w", err)
	}
	return nil
}

// Path returns the full filesystem path for an object name.
func (s *Storage) Path(name string) string {
	return filepath.Join(s.basePath, name)
}

// validateName rejects empty names and path traversal.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("object name cannot be empty")
	}
	if filepath.Base(name) != name {
		return fmt.Errorf("invalid object name: %s", name)
	}
	return nil
}
