package schema

import (
	"github.com/KaramelBytes/sameday-cli/internal/table"
)

// Normalize maps a RawTable onto the canonical schema and returns the
// observation table. The raw table is not modified.
//
// Rows with an unparseable date, or a missing or non-numeric value in any
// temperature column present in the source, are dropped and counted in
// Table.Stats. A temperature column absent from the source is not required.
// If no header resolves to the date column, a *SchemaError is returned.
func Normalize(raw *table.RawTable) (*Table, error) {
	if raw == nil {
		return nil, &SchemaError{}
	}
	names := make([]string, len(raw.Header))
	dateIdx := -1
	for i, h := range raw.Header {
		names[i] = CleanValue(h)
		if dateIdx < 0 && CanonicalColumn(names[i]) == DateColumn {
			dateIdx = i
		}
	}
	if dateIdx < 0 {
		return nil, &SchemaError{Source: raw.Source, Columns: names}
	}

	var columns FieldSet
	fieldIdx := make(map[Field]int, len(Fields))
	for _, f := range Fields {
		for i, n := range names {
			if n == f.Column() {
				fieldIdx[f] = i
				columns = columns.With(f)
				break
			}
		}
	}

	var st Stats
	obs := make([]Observation, 0, len(raw.Rows))
rows:
	for _, row := range raw.Rows {
		st.RowsRead++
		d, err := ParseDate(row[dateIdx])
		if err != nil {
			st.BadDate++
			continue
		}
		o := Observation{Date: d}
		for _, f := range Fields {
			idx, ok := fieldIdx[f]
			if !ok {
				continue
			}
			v, ok := parseTemp(row[idx])
			if !ok {
				st.MissingTemp++
				continue rows
			}
			o.set(f, v)
		}
		obs = append(obs, o)
	}

	t := NewTable(obs, columns)
	t.Source = raw.Source
	t.Encoding = raw.Encoding
	st.Duplicates = t.Stats.Duplicates
	st.Kept = t.Stats.Kept
	t.Stats = st
	return t, nil
}
