package schema

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/sameday-cli/internal/table"
)

// DateColumn is the canonical date column name.
const DateColumn = "날짜"

// Canonical temperature columns, matched exactly after trimming.
const (
	MeanColumn = "평균기온(℃)"
	MinColumn  = "최저기온(℃)"
	MaxColumn  = "최고기온(℃)"
)

// dateSynonyms maps every accepted header spelling onto DateColumn.
// Matching is case-sensitive.
var dateSynonyms = map[string]string{
	DateColumn: DateColumn,
	"일시":       DateColumn,
	"date":     DateColumn,
	"Date":     DateColumn,
	"time":     DateColumn,
}

// CanonicalColumn maps a trimmed header name onto its canonical name.
// Names without a synonym entry are returned unchanged.
func CanonicalColumn(name string) string {
	if c, ok := dateSynonyms[name]; ok {
		return c
	}
	return name
}

// DateColumnNames lists the header spellings recognized as the date column.
func DateColumnNames() []string {
	out := make([]string, 0, len(dateSynonyms))
	for k := range dateSynonyms {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Field identifies one of the temperature measurements.
type Field uint8

const (
	FieldMean Field = iota
	FieldMin
	FieldMax
)

// Fields lists every temperature field in canonical column order.
var Fields = []Field{FieldMean, FieldMin, FieldMax}

// Column returns the canonical header of f.
func (f Field) Column() string {
	switch f {
	case FieldMean:
		return MeanColumn
	case FieldMin:
		return MinColumn
	case FieldMax:
		return MaxColumn
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

func (f Field) String() string {
	switch f {
	case FieldMean:
		return "mean"
	case FieldMin:
		return "min"
	case FieldMax:
		return "max"
	}
	return "unknown"
}

// FieldSet is a bit set of Fields.
type FieldSet uint8

// AllFields has every temperature field set.
const AllFields = FieldSet(1<<FieldMean | 1<<FieldMin | 1<<FieldMax)

// Has reports whether f is in the set.
func (s FieldSet) Has(f Field) bool { return s&(1<<f) != 0 }

// With returns the set with f added.
func (s FieldSet) With(f Field) FieldSet { return s | 1<<f }

// Fields returns the members of s in canonical order.
func (s FieldSet) Fields() []Field {
	var out []Field
	for _, f := range Fields {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Observation is one calendar date's temperatures in °C.
type Observation struct {
	Date     Date
	MeanTemp float64
	MinTemp  float64
	MaxTemp  float64
	// Present marks the fields that were read from the source.
	Present FieldSet
}

// NewObservation returns an Observation with all three temperatures present.
func NewObservation(d Date, mean, min, max float64) Observation {
	return Observation{Date: d, MeanTemp: mean, MinTemp: min, MaxTemp: max, Present: AllFields}
}

// Value returns the temperature for f and whether it is present.
func (o Observation) Value(f Field) (float64, bool) {
	if !o.Present.Has(f) {
		return 0, false
	}
	switch f {
	case FieldMean:
		return o.MeanTemp, true
	case FieldMin:
		return o.MinTemp, true
	case FieldMax:
		return o.MaxTemp, true
	}
	return 0, false
}

func (o *Observation) set(f Field, v float64) {
	switch f {
	case FieldMean:
		o.MeanTemp = v
	case FieldMin:
		o.MinTemp = v
	case FieldMax:
		o.MaxTemp = v
	}
	o.Present = o.Present.With(f)
}

// Stats are the aggregate row counts of one normalization pass.
type Stats struct {
	RowsRead    int `json:"rows_read"`
	BadDate     int `json:"bad_date"`
	MissingTemp int `json:"missing_temp"`
	Duplicates  int `json:"duplicates"`
	Kept        int `json:"kept"`
}

// Dropped is the number of rows excluded from the table.
func (s Stats) Dropped() int { return s.BadDate + s.MissingTemp + s.Duplicates }

// Table is the normalized, read-only observation set of one source, sorted
// by date with unique dates.
type Table struct {
	Source   string
	Encoding string
	// Columns lists the temperature columns found in the source.
	Columns FieldSet
	Stats   Stats

	obs   []Observation
	index map[Date]int
}

// NewTable builds a Table from observations. Order is irrelevant; for a
// repeated date the first occurrence wins.
func NewTable(obs []Observation, columns FieldSet) *Table {
	t := &Table{Columns: columns, index: make(map[Date]int, len(obs))}
	kept := make([]Observation, 0, len(obs))
	seen := make(map[Date]struct{}, len(obs))
	for _, o := range obs {
		if _, dup := seen[o.Date]; dup {
			t.Stats.Duplicates++
			continue
		}
		seen[o.Date] = struct{}{}
		kept = append(kept, o)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Date.Before(kept[j].Date) })
	for i, o := range kept {
		t.index[o.Date] = i
	}
	t.obs = kept
	t.Stats.Kept = len(kept)
	return t
}

// Len returns the number of observations.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.obs)
}

// Empty reports whether the table has no observations.
func (t *Table) Empty() bool { return t.Len() == 0 }

// At returns the i-th observation in date order.
func (t *Table) At(i int) Observation { return t.obs[i] }

// Observations returns a copy of all observations in date order.
func (t *Table) Observations() []Observation {
	out := make([]Observation, len(t.obs))
	copy(out, t.obs)
	return out
}

// Lookup returns the observation for exactly d.
func (t *Table) Lookup(d Date) (Observation, bool) {
	if t == nil {
		return Observation{}, false
	}
	i, ok := t.index[d]
	if !ok {
		return Observation{}, false
	}
	return t.obs[i], true
}

// Range returns the first and last dates in the table.
func (t *Table) Range() (first, last Date, ok bool) {
	if t.Empty() {
		return Date{}, Date{}, false
	}
	return t.obs[0].Date, t.obs[len(t.obs)-1].Date, true
}

// Has reports whether the source provided column f.
func (t *Table) Has(f Field) bool { return t.Columns.Has(f) }

// Raw renders the table back into canonical raw form: the date column
// followed by the temperature columns present.
func (t *Table) Raw() *table.RawTable {
	header := []string{DateColumn}
	var fields []Field
	for _, f := range Fields {
		if t.Has(f) {
			header = append(header, f.Column())
			fields = append(fields, f)
		}
	}
	rows := make([][]string, 0, len(t.obs))
	for _, o := range t.obs {
		row := make([]string, 0, len(header))
		row = append(row, o.Date.String())
		for _, f := range fields {
			v, _ := o.Value(f)
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		rows = append(rows, row)
	}
	return &table.RawTable{Source: t.Source, Encoding: t.Encoding, Header: header, Rows: rows}
}

// SchemaError indicates no header resolved to the date column. Columns holds
// the trimmed header names that were present, for diagnostics.
type SchemaError struct {
	Source  string
	Columns []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("no date column in %s (accepted: %s); columns present: [%s]",
		sourceLabel(e.Source), strings.Join(DateColumnNames(), ", "), strings.Join(e.Columns, ", "))
}

func sourceLabel(s string) string {
	if s == "" {
		return "input"
	}
	return s
}

func parseTemp(s string) (float64, bool) {
	v := CleanValue(s)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
