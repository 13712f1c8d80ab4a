// Package cohort selects the observations that share a calendar day with a
// target date across every recorded year.
package cohort

import (
	"sort"

	"github.com/KaramelBytes/sameday-cli/internal/schema"
)

// Cohort is the set of observations sharing month and day with a target,
// ordered by year ascending. It does not own the table.
type Cohort struct {
	Month   int
	Day     int
	Members []schema.Observation
}

// Len returns the number of members.
func (c Cohort) Len() int { return len(c.Members) }

// Years returns the member years in order.
func (c Cohort) Years() []int {
	out := make([]int, len(c.Members))
	for i, m := range c.Members {
		out[i] = m.Date.Year
	}
	return out
}

// Means returns the member mean temperatures in year order.
func (c Cohort) Means() []float64 {
	out := make([]float64, len(c.Members))
	for i, m := range c.Members {
		out[i] = m.MeanTemp
	}
	return out
}

// Build returns the observation for exactly target (ok is false when the
// table has no row for that date) and the cohort of target's month and day.
// A missing target is an ordinary outcome and not an error.
func Build(t *schema.Table, target schema.Date) (schema.Observation, bool, Cohort) {
	c := Cohort{Month: int(target.Month), Day: target.Day}
	if t == nil {
		return schema.Observation{}, false, c
	}
	for i := 0; i < t.Len(); i++ {
		o := t.At(i)
		if o.Date.SameMonthDay(target) {
			c.Members = append(c.Members, o)
		}
	}
	// Year order must not depend on table order.
	sort.SliceStable(c.Members, func(i, j int) bool { return c.Members[i].Date.Year < c.Members[j].Date.Year })
	obs, ok := t.Lookup(target)
	return obs, ok, c
}
