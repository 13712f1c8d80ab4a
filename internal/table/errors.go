package table

import (
	"fmt"
	"strings"
)

// DecodeError indicates the content could not be decoded with any of the
// attempted encodings.
type DecodeError struct {
	Source    string
	Encodings []string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: tried %s: %v", e.Source, strings.Join(e.Encodings, ", "), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// LoadError indicates the source is missing or not readable as a table.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("load table: %v", e.Err)
	}
	return fmt.Sprintf("load table %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
