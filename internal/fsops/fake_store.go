package fsops

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FakeStore implements Store for testing.
// Serves files from memory, records every call, and can inject failures.
type FakeStore struct {
	Files     map[string][]byte
	ReadErrs  map[string]error
	WriteErrs map[string]error
	Calls     []string
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		Files:     make(map[string][]byte),
		ReadErrs:  make(map[string]error),
		WriteErrs: make(map[string]error),
	}
}

func (f *FakeStore) ReadFile(path string) ([]byte, error) {
	f.Calls = append(f.Calls, "read:"+path)
	if err := f.ReadErrs[path]; err != nil {
		return nil, err
	}
	data, ok := f.Files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (f *FakeStore) WriteFile(path string, data []byte) error {
	f.Calls = append(f.Calls, "write:"+path)
	if err := f.WriteErrs[path]; err != nil {
		return err
	}
	f.Files[path] = append([]byte(nil), data...)
	return nil
}

func (f *FakeStore) Stat(path string) (os.FileInfo, error) {
	data, ok := f.Files[path]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return fakeInfo{name: filepath.Base(path), size: int64(len(data))}, nil
}

// Writes returns the recorded write calls.
func (f *FakeStore) Writes() []string {
	var out []string
	for _, c := range f.Calls {
		if len(c) > 6 && c[:6] == "write:" {
			out = append(out, c)
		}
	}
	return out
}

type fakeInfo struct {
	name string
	size int64
}

func (i fakeInfo) Name() string       { return i.name }
func (i fakeInfo) Size() int64        { return i.size }
func (i fakeInfo) Mode() fs.FileMode  { return 0o644 }
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return false }
func (i fakeInfo) Sys() any           { return nil }
