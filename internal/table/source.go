package table

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Source is a raw delimited-text input: a file on disk or an uploaded buffer.
type Source interface {
	// Name identifies the source in messages and reports.
	Name() string
	// Bytes returns the full content. Every call starts from the beginning.
	Bytes() ([]byte, error)
}

type fileSource struct{ path string }

// FileSource returns a Source reading the file at path.
func FileSource(path string) Source { return fileSource{path: path} }

func (s fileSource) Name() string { return filepath.Base(s.path) }

func (s fileSource) Bytes() ([]byte, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return b, nil
}

type bytesSource struct {
	name string
	data []byte
}

// BytesSource wraps an in-memory upload. The buffer is not copied and must
// not be modified by the caller afterwards.
func BytesSource(name string, data []byte) Source {
	return bytesSource{name: name, data: data}
}

func (s bytesSource) Name() string { return s.name }

func (s bytesSource) Bytes() ([]byte, error) { return s.data, nil }

// Fingerprint returns the hex SHA-256 of content. Two sources with the same
// bytes share a fingerprint regardless of their names.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
