package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
)

// DefaultHeaderSkip is the number of metadata lines that precede the header
// row in KMA daily temperature exports.
const DefaultHeaderSkip = 7

// Options controls how a Source is turned into a RawTable.
type Options struct {
	// HeaderSkip is the number of leading lines dropped before the header row.
	HeaderSkip int
	// PrimaryEncoding is tried first; FallbackEncoding is tried when the
	// primary decode fails. Empty fallback disables the second attempt.
	PrimaryEncoding  string
	FallbackEncoding string
	// Delimiter for CSV. If 0, sniffed from the source name (',' or '\t').
	Delimiter rune
}

// DefaultOptions returns the loader defaults: 7 skipped lines, UTF-8 with a
// CP949 fallback.
func DefaultOptions() Options {
	return Options{
		HeaderSkip:       DefaultHeaderSkip,
		PrimaryEncoding:  "utf-8",
		FallbackEncoding: "cp949",
	}
}

// RawRecord is one row keyed by header name, before any typing.
type RawRecord map[string]string

// RawTable is the untyped tabular content of a source. Header names are kept
// exactly as read; every row has len(Header) cells.
type RawTable struct {
	Source   string
	Encoding string
	Header   []string
	Rows     [][]string
}

// Len returns the number of data rows.
func (t *RawTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Record returns row i as a RawRecord. When a header name repeats, the first
// column with that name wins.
func (t *RawTable) Record(i int) RawRecord {
	rec := make(RawRecord, len(t.Header))
	for j, name := range t.Header {
		if _, ok := rec[name]; ok {
			continue
		}
		rec[name] = t.Rows[i][j]
	}
	return rec
}

// Load reads src and parses it into a RawTable. Decode failures under every
// attempted encoding yield *DecodeError; any other failure yields *LoadError.
// On error the returned table is nil.
func Load(src Source, opt Options) (*RawTable, error) {
	name := src.Name()
	content, err := src.Bytes()
	if err != nil {
		return nil, &LoadError{Source: name, Err: err}
	}
	text, encName, err := decodeWithFallback(name, content, opt)
	if err != nil {
		return nil, err
	}
	skip := opt.HeaderSkip
	if skip < 0 {
		skip = 0
	}
	body, skipped := skipLines(text, skip)
	if skipped < skip {
		return nil, &LoadError{Source: name, Err: fmt.Errorf("only %d lines present, expected %d metadata lines before the header", skipped, skip)}
	}
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(name)
	}
	t, err := parseCSV(body, delim)
	if err != nil {
		return nil, &LoadError{Source: name, Err: err}
	}
	t.Source = name
	t.Encoding = encName
	return t, nil
}

type codec struct {
	name string
	enc  encoding.Encoding
	utf8 bool
}

// CheckEncoding reports whether name is an encoding Load can decode with.
func CheckEncoding(name string) error {
	_, err := lookupCodec(name)
	return err
}

func lookupCodec(name string) (codec, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "", "utf-8", "utf8":
		return codec{name: "utf-8", enc: unicode.UTF8BOM, utf8: true}, nil
	case "cp949", "ms949", "windows-949", "euc-kr", "euckr":
		return codec{name: n, enc: korean.EUCKR}, nil
	}
	enc, err := htmlindex.Get(n)
	if err != nil {
		return codec{}, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return codec{name: n, enc: enc}, nil
}

func decodeWithFallback(source string, content []byte, opt Options) (string, string, error) {
	names := []string{opt.PrimaryEncoding}
	if strings.TrimSpace(opt.FallbackEncoding) != "" {
		names = append(names, opt.FallbackEncoding)
	}
	var tried []string
	var lastErr error
	for _, n := range names {
		c, err := lookupCodec(n)
		if err != nil {
			return "", "", &LoadError{Source: source, Err: err}
		}
		tried = append(tried, c.name)
		text, err := decode(content, c)
		if err == nil {
			return text, c.name, nil
		}
		lastErr = err
	}
	return "", "", &DecodeError{Source: source, Encodings: tried, Err: lastErr}
}

func decode(content []byte, c codec) (string, error) {
	if c.utf8 {
		if off := invalidUTF8Offset(content); off >= 0 {
			return "", fmt.Errorf("invalid utf-8 byte 0x%02x at offset %d", content[off], off)
		}
	}
	out, err := c.enc.NewDecoder().Bytes(content)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.name, err)
	}
	if !c.utf8 {
		if i := bytes.IndexRune(out, utf8.RuneError); i >= 0 {
			return "", fmt.Errorf("invalid %s byte sequence near decoded offset %d", c.name, i)
		}
	}
	return string(out), nil
}

func invalidUTF8Offset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}

// skipLines drops the first n lines of text and reports how many were
// actually dropped.
func skipLines(text string, n int) (string, int) {
	rest := text
	for i := 0; i < n; i++ {
		idx := strings.IndexByte(rest, '\n')
		if idx < 0 {
			if rest == "" {
				return "", i
			}
			return "", i + 1
		}
		rest = rest[idx+1:]
	}
	return rest, n
}

func sniffDelimiter(name string) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	return ','
}

func parseCSV(body string, delim rune) (*RawTable, error) {
	r := csv.NewReader(strings.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	ncol := len(header)
	t := &RawTable{Header: header}
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		// Normalize length
		row := make([]string, ncol)
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
