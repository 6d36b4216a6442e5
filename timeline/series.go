package timeline

import (
	"fmt"
	"time"
)

// Series is a piecewise-constant curve sampled at Times. Values[i] holds from
// Times[i] until the next sample.
type Series struct {
	Label  string      `json:"label"`
	Times  []time.Time `json:"times"`
	Values []float64   `json:"values"`
}

// Step returns the sample-and-hold form of the series. It fails when Times
// and Values differ in length.
func (s Series) Step() (Series, error) {
	xx, yy, err := ToStep(s.Times, s.Values)
	if err != nil {
		return Series{}, fmt.Errorf("series %q: %w", s.Label, err)
	}
	return Series{Label: s.Label, Times: xx, Values: yy}, nil
}

// At returns the value in effect at t, that is the value of the last sample
// at or before t. It returns 0 before the first sample.
func (s Series) At(t time.Time) float64 {
	v := 0.0
	for i, x := range s.Times {
		if x.After(t) {
			break
		}
		v = s.Values[i]
	}
	return v
}

// Peak returns the largest value and the first time it was reached.
func (s Series) Peak() (float64, time.Time) {
	var (
		peak float64
		when time.Time
	)
	for i, v := range s.Values {
		if i == 0 || v > peak {
			peak, when = v, s.Times[i]
		}
	}
	return peak, when
}
