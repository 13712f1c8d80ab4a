package schema

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Date is a naive calendar date. No time zone is attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date without validation.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf extracts the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// SameMonthDay reports whether d and o fall on the same calendar day of the year.
func (d Date) SameMonthDay(o Date) bool {
	return d.Month == o.Month && d.Day == o.Day
}

// MarshalText encodes the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText accepts any layout ParseDate does.
func (d *Date) UnmarshalText(b []byte) error {
	p, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = p
	return nil
}

// dateLayouts are tried in order. Slash dates are month-first.
var dateLayouts = []string{
	"2006-01-02", "2006-1-2", "2006/01/02", "2006/1/2", "2006.01.02", "2006.1.2", "20060102",
	"2006-01-02 15:04", "2006-01-02 15:04:05", time.RFC3339,
	"01/02/2006", "1/2/2006",
}

// ParseDate parses s as a calendar date after removing control characters
// (tabs included) and surrounding whitespace.
func ParseDate(s string) (Date, error) {
	v := CleanValue(s)
	if v == "" {
		return Date{}, fmt.Errorf("empty date")
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, v); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized date %q", v)
}

// CleanValue removes control and byte-order-mark runes anywhere in s and
// trims surrounding whitespace.
func CleanValue(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\ufeff' || (unicode.IsControl(r) && r != ' ') {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
