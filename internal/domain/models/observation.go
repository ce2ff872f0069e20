package models

import (
	"math"
	"sort"
	"time"
)

// Observation is one dated record of numeric weather fields for a location.
// A field that is absent from Values, or holds NaN, is missing.
type Observation struct {
	Time   time.Time
	Values map[string]float64
}

// Value returns the field value and whether it is present and finite.
func (o Observation) Value(field string) (float64, bool) {
	v, ok := o.Values[field]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Has reports whether the field column exists on this observation, even if its value is missing.
func (o Observation) Has(field string) bool {
	_, ok := o.Values[field]
	return ok
}

// TimeSeries is an ordered run of observations for one location.
type TimeSeries struct {
	Location     string
	Observations []Observation
}

// Len returns the number of observations.
func (s TimeSeries) Len() int { return len(s.Observations) }

// HasField reports whether any observation carries the field column.
func (s TimeSeries) HasField(field string) bool {
	for _, o := range s.Observations {
		if o.Has(field) {
			return true
		}
	}
	return false
}

// Normalize returns a copy sorted by timestamp with at most one observation per
// timestamp. Zero timestamps are dropped. When timestamps collide the later
// row in input order wins.
func (s TimeSeries) Normalize() TimeSeries {
	obs := make([]Observation, 0, len(s.Observations))
	for _, o := range s.Observations {
		if o.Time.IsZero() {
			continue
		}
		obs = append(obs, o)
	}
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Time.Before(obs[j].Time) })

	out := obs[:0]
	for _, o := range obs {
		if n := len(out); n > 0 && out[n-1].Time.Equal(o.Time) {
			out[n-1] = o
			continue
		}
		out = append(out, o)
	}
	return TimeSeries{Location: s.Location, Observations: out}
}

// Last returns the final observation; ok is false for an empty series.
func (s TimeSeries) Last() (Observation, bool) {
	if len(s.Observations) == 0 {
		return Observation{}, false
	}
	return s.Observations[len(s.Observations)-1], true
}
