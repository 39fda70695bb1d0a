package fsops

import (
	"fmt"
	"os"
)

// OSStore implements Store using real os package calls
type OSStore struct{}

func (OSStore) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile replaces the full content of an existing file, keeping its mode.
func (OSStore) WriteFile(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func (OSStore) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}
