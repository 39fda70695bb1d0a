package fsops

import "os"

// Store abstracts the file reads and rewrites performed during a sweep.
// Enables fakes in tests to prove dry-run never writes.
type Store interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	Stat(path string) (os.FileInfo, error)
}
