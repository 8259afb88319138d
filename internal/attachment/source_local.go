package attachment

import (
	"context"
	"os"
	"path/filepath"
)

// fileSource reads a file from the local filesystem.
type fileSource struct {
	path string
}

func (s *fileSource) Kind() string         { return "file" }
func (s *fileSource) Location() Location   { return LocationLocal }
func (s *fileSource) Access() AccessClass  { return AccessLocal }
func (s *fileSource) Describe() string     { return s.path }
func (s *fileSource) fallbackName() string { return filepath.Base(s.path) }

func (s *fileSource) Probe(context.Context) (int64, bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, false, s.notFound(err, 0)
	}
	if !info.Mode().IsRegular() {
		return 0, false, s.notFound(nil, 0)
	}
	return info.Size(), true, nil
}

func (s *fileSource) Fetch(_ context.Context, limit int64) ([]byte, Meta, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, Meta{}, s.notFound(err, 0)
	}
	defer f.Close()

	data, over, err := readLimited(f, limit)
	if err != nil {
		return nil, Meta{}, s.notFound(err, int64(len(data)))
	}
	if over {
		return nil, Meta{}, tooLargeError(s.path, -1, limit)
	}
	return data, Meta{Name: filepath.Base(s.path)}, nil
}

func (s *fileSource) notFound(cause error, size int64) error {
	return notFound(s.path, cause).FileContext(s.path, size).Build()
}

// memorySource serves content held in memory.
type memorySource struct {
	name string
	data []byte
}

func (s *memorySource) Kind() string        { return "memory" }
func (s *memorySource) Location() Location  { return LocationLocal }
func (s *memorySource) Access() AccessClass { return AccessLocal }
func (s *memorySource) Describe() string    { return "memory:" + s.name }

func (s *memorySource) Probe(context.Context) (int64, bool, error) {
	return int64(len(s.data)), true, nil
}

func (s *memorySource) Fetch(_ context.Context, limit int64) ([]byte, Meta, error) {
	if int64(len(s.data)) > limit {
		return nil, Meta{}, tooLargeError(s.Describe(), int64(len(s.data)), limit)
	}
	return append([]byte(nil), s.data...), Meta{Name: s.name}, nil
}
