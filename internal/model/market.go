package model

import (
	"math"
	"time"
)

// PricePoint is a single closing price. Position in a PriceSeries gives its
// chronological order; Time is informational only.
type PricePoint struct {
	Time  time.Time
	Close float64
}

// PriceSeries holds the closes returned by a provider, oldest first.
type PriceSeries struct {
	Symbol    string
	Points    []PricePoint
	FetchedAt time.Time
}

// Closes returns the close prices in order, dropping missing (NaN or
// infinite) values.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, 0, len(s.Points))
	for _, p := range s.Points {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			continue
		}
		closes = append(closes, p.Close)
	}
	return closes
}

// LastClose returns the most recent valid close.
func (s PriceSeries) LastClose() (float64, bool) {
	for i := len(s.Points) - 1; i >= 0; i-- {
		c := s.Points[i].Close
		if math.IsNaN(c) || math.IsInf(c, 0) {
			continue
		}
		return c, true
	}
	return 0, false
}

// Len returns the number of points, including missing ones.
func (s PriceSeries) Len() int { return len(s.Points) }
