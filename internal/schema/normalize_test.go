package schema

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/encoding/korean"

	"github.com/KaramelBytes/sameday-cli/internal/table"
)

func rawKMA(rows ...[]string) *table.RawTable {
	return &table.RawTable{
		Source: "ta.csv",
		Header: []string{" 날짜 ", "지점", "\t평균기온(℃)", "최저기온(℃) ", " 최고기온(℃)"},
		Rows:   rows,
	}
}

func TestNormalizeDropsBadRows(t *testing.T) {
	raw := rawKMA(
		[]string{"\t2020-01-01", "108", "1.5", "-3.0", "6.1"},
		[]string{"\t2020-01-02\t", "108", "2.0", "-1.0", "5.0"},
		[]string{"not a date", "108", "2.0", "-1.0", "5.0"},
		[]string{"2020-01-03", "108", "", "-1.0", "5.0"},
		[]string{"2020-01-04", "108", "warm", "-1.0", "5.0"},
		[]string{"2020-01-05", "108", "NaN", "-1.0", "5.0"},
		[]string{"2020-01-01", "108", "9.9", "9.9", "9.9"},
	)
	tbl, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := Stats{RowsRead: 7, BadDate: 1, MissingTemp: 3, Duplicates: 1, Kept: 2}
	if diff := cmp.Diff(want, tbl.Stats); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
	wantObs := []Observation{
		NewObservation(NewDate(2020, time.January, 1), 1.5, -3.0, 6.1),
		NewObservation(NewDate(2020, time.January, 2), 2.0, -1.0, 5.0),
	}
	if diff := cmp.Diff(wantObs, tbl.Observations()); diff != "" {
		t.Fatalf("observations mismatch (-want +got):\n%s", diff)
	}
	if tbl.Stats.Dropped() != 5 {
		t.Fatalf("dropped = %d, want 5", tbl.Stats.Dropped())
	}
}

func TestNormalizeDateSynonyms(t *testing.T) {
	for _, name := range []string{"날짜", "일시", "date", "Date", "time", "  date  "} {
		raw := &table.RawTable{
			Header: []string{name, MeanColumn},
			Rows:   [][]string{{"2021-07-01", "25.1"}},
		}
		tbl, err := Normalize(raw)
		if err != nil {
			t.Fatalf("%q: Normalize: %v", name, err)
		}
		if tbl.Len() != 1 {
			t.Fatalf("%q: len = %d, want 1", name, tbl.Len())
		}
	}
}

func TestNormalizeSynonymsAreCaseSensitive(t *testing.T) {
	raw := &table.RawTable{
		Header: []string{"DATE", MeanColumn},
		Rows:   [][]string{{"2021-07-01", "25.1"}},
	}
	_, err := Normalize(raw)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("want SchemaError, got %v", err)
	}
	if diff := cmp.Diff([]string{"DATE", MeanColumn}, se.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeHeaderOffsetMismatch(t *testing.T) {
	// Header on line 5 while the loader skips 7 lines: the third data row
	// becomes the header.
	lines := []string{
		"meta 1", "meta 2", "meta 3", "meta 4",
		"날짜,지점,평균기온(℃),최저기온(℃),최고기온(℃)",
		"2000-01-01,108,1.0,0.0,2.0",
		"2000-01-02,108,1.5,0.5,2.5",
		"2000-01-03,108,2.0,1.0,3.0",
		"2000-01-04,108,2.5,1.5,3.5",
	}
	raw, err := table.Load(table.BytesSource("shifted.csv", []byte(strings.Join(lines, "\n"))), table.DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	_, err = Normalize(raw)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("want SchemaError, got %v", err)
	}
	if diff := cmp.Diff([]string{"2000-01-03", "108", "2.0", "1.0", "3.0"}, se.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(se.Error(), "2000-01-03") {
		t.Fatalf("error should list observed columns: %v", se)
	}
}

func TestNormalizeMissingRequiredColumnIsSkipped(t *testing.T) {
	raw := &table.RawTable{
		Header: []string{"일시", MeanColumn, MaxColumn},
		Rows: [][]string{
			{"2019-05-01", "15.2", "21.0"},
			{"2019-05-02", "16.0", "22.4"},
		},
	}
	tbl, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("len = %d, want 2", tbl.Len())
	}
	if tbl.Has(FieldMin) || !tbl.Has(FieldMean) || !tbl.Has(FieldMax) {
		t.Fatalf("unexpected columns: %b", tbl.Columns)
	}
	if _, ok := tbl.At(0).Value(FieldMin); ok {
		t.Fatalf("min temperature should be absent")
	}
}

func TestNormalizeDoesNotMutateRaw(t *testing.T) {
	raw := rawKMA([]string{"\t2020-01-01", "108", " 1.5 ", "-3.0", "6.1"})
	before := &table.RawTable{Header: append([]string(nil), raw.Header...), Rows: [][]string{append([]string(nil), raw.Rows[0]...)}}
	a, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if diff := cmp.Diff(before.Header, raw.Header); diff != "" {
		t.Fatalf("header mutated (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(before.Rows, raw.Rows); diff != "" {
		t.Fatalf("rows mutated (-want +got):\n%s", diff)
	}
	b, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize again: %v", err)
	}
	if diff := cmp.Diff(a.Observations(), b.Observations()); diff != "" {
		t.Fatalf("second pass differs (-first +second):\n%s", diff)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := rawKMA(
		[]string{"\t1990-03-01", "108", "4.25", "-0.1", "9.0"},
		[]string{"\t1991-03-01", "108", "5", "1", "10.75"},
		[]string{"\t1989-03-01", "108", "-2.5", "-7.3", "2.2"},
	)
	first, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	second, err := Normalize(first.Raw())
	if err != nil {
		t.Fatalf("Normalize(Raw): %v", err)
	}
	if diff := cmp.Diff(first.Observations(), second.Observations()); diff != "" {
		t.Fatalf("not idempotent (-first +second):\n%s", diff)
	}
	if second.Stats.Dropped() != 0 {
		t.Fatalf("normalized table lost rows: %+v", second.Stats)
	}
}

func TestNormalizeKeepsOnlyCompleteFiniteRows(t *testing.T) {
	raw := rawKMA(
		[]string{"2001-01-01", "108", "1", "0", "2"},
		[]string{"2001-01-02", "108", "Inf", "0", "2"},
		[]string{"2001-01-03", "108", "1", "", "2"},
		[]string{"", "108", "1", "0", "2"},
	)
	tbl, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	for _, o := range tbl.Observations() {
		if o.Date.IsZero() {
			t.Fatalf("observation without date: %+v", o)
		}
		for _, f := range Fields {
			v, ok := o.Value(f)
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("field %s missing or not finite in %+v", f, o)
			}
		}
	}
	if tbl.Len() != 1 {
		t.Fatalf("len = %d, want 1", tbl.Len())
	}
}

func TestLoadLegacyEncodingNormalizes(t *testing.T) {
	lines := []string{
		"[검색조건]", "자료구분 : 일", "자료형태 : 기본", "지점번호 : 108", "지점명 : 서울", "시작일 : 20000101", "종료일 : 20000102",
		"날짜,지점,평균기온(℃),최저기온(℃),최고기온(℃)",
		"\t2000-01-01,108,-1.2,-5.0,3.3",
		"\t2000-01-02,108,0.4,-3.1,4.0",
	}
	enc, err := korean.EUCKR.NewEncoder().String(strings.Join(lines, "\r\n"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw, err := table.Load(table.BytesSource("legacy.csv", []byte(enc)), table.DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tbl, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if tbl.Empty() {
		t.Fatalf("expected non-empty table")
	}
	if tbl.Encoding != "cp949" {
		t.Fatalf("encoding = %q, want cp949", tbl.Encoding)
	}
}

func TestLoadTwiceYieldsSameTable(t *testing.T) {
	content := []byte(strings.Join([]string{
		"1", "2", "3", "4", "5", "6", "7",
		"날짜,평균기온(℃),최저기온(℃),최고기온(℃)",
		"2010-06-01,20.1,15.0,26.3",
		"2011-06-01,21.4,16.2,27.0",
	}, "\n"))
	load := func() *Table {
		raw, err := table.Load(table.BytesSource("a.csv", content), table.DefaultOptions())
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		tbl, err := Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		return tbl
	}
	a, b := load(), load()
	if a.Len() != b.Len() {
		t.Fatalf("row counts differ: %d vs %d", a.Len(), b.Len())
	}
	if diff := cmp.Diff(a.Observations(), b.Observations()); diff != "" {
		t.Fatalf("tables differ (-a +b):\n%s", diff)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"2024-02-29", NewDate(2024, time.February, 29), true},
		{"\t2024-02-29\t", NewDate(2024, time.February, 29), true},
		{" 2024/1/5 ", NewDate(2024, time.January, 5), true},
		{"20240105", NewDate(2024, time.January, 5), true},
		{"2024.01.05", NewDate(2024, time.January, 5), true},
		{"2024-01-05 00:00:00", NewDate(2024, time.January, 5), true},
		{"01/05/2024", NewDate(2024, time.January, 5), true},
		{"2023-02-29", Date{}, false},
		{"nan", Date{}, false},
		{"", Date{}, false},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("ParseDate(%q) err = %v, want ok=%v", tt.in, err, tt.ok)
		}
		if got != tt.want {
			t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTableLookupAndRange(t *testing.T) {
	d1 := NewDate(2001, time.March, 3)
	d2 := NewDate(1999, time.March, 3)
	tbl := NewTable([]Observation{
		NewObservation(d1, 5, 1, 9),
		NewObservation(d2, 4, 0, 8),
	}, AllFields)
	first, last, ok := tbl.Range()
	if !ok || first != d2 || last != d1 {
		t.Fatalf("range = %v..%v (%v)", first, last, ok)
	}
	o, ok := tbl.Lookup(d1)
	if !ok || o.MeanTemp != 5 {
		t.Fatalf("lookup = %+v, %v", o, ok)
	}
	if _, ok := tbl.Lookup(NewDate(2000, time.March, 3)); ok {
		t.Fatalf("unexpected hit")
	}
}
