package attachment

import (
	"context"
	"io"
)

// Source produces attachment content.
type Source interface {
	// Kind names the source type for logs and metrics ("file", "http", ...).
	Kind() string
	Location() Location
	Access() AccessClass
	// Describe returns a location string safe to log.
	Describe() string
	// Probe reports the content size when the source can tell without
	// reading it. known is false when it cannot.
	Probe(ctx context.Context) (size int64, known bool, err error)
	// Fetch reads the content, failing with ErrTooLarge once more than limit
	// bytes are seen.
	Fetch(ctx context.Context, limit int64) ([]byte, Meta, error)
}

// Meta carries what a source learned about its content.
type Meta struct {
	Name     string
	MimeType string
}

// readLimited reads at most limit bytes; over reports that more were available.
func readLimited(r io.Reader, limit int64) (data []byte, over bool, err error) {
	data, err = io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return nil, true, nil
	}
	return data, false, nil
}
