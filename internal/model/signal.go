package model

import (
	"fmt"
	"time"
)

// Signal is the classification of a ticker's RSI against the thresholds.
type Signal string

const (
	SignalOverbought  Signal = "OVERBOUGHT"
	SignalOversold    Signal = "OVERSOLD"
	SignalNeutral     Signal = "NEUTRAL"
	SignalUnavailable Signal = "UNAVAILABLE"
)

// Actionable reports whether the signal should trigger a notification.
func (s Signal) Actionable() bool {
	return s == SignalOverbought || s == SignalOversold
}

// RSIResult is either a value in [0, 100] or undefined when the series was
// too short for the lookback.
type RSIResult struct {
	Value   float64
	Defined bool
}

// RSIValue wraps a computed RSI.
func RSIValue(v float64) RSIResult { return RSIResult{Value: v, Defined: true} }

// UndefinedRSI is the result for insufficient data.
func UndefinedRSI() RSIResult { return RSIResult{} }

// String renders the value with two decimals, or "N/A".
func (r RSIResult) String() string {
	if !r.Defined {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", r.Value)
}

// Thresholds holds the overbought/oversold bounds. Both bounds are inclusive.
type Thresholds struct {
	Overbought float64 `yaml:"overbought"`
	Oversold   float64 `yaml:"oversold"`
}

// DefaultThresholds returns the conventional 70/30 bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{Overbought: 70, Oversold: 30}
}

// Validate checks 0 <= oversold < overbought <= 100.
func (t Thresholds) Validate() error {
	if !inPercentRange(t.Oversold) || !inPercentRange(t.Overbought) {
		return fmt.Errorf("thresholds must be within [0, 100], got oversold=%.2f overbought=%.2f", t.Oversold, t.Overbought)
	}
	if t.Oversold >= t.Overbought {
		return fmt.Errorf("oversold (%.2f) must be below overbought (%.2f)", t.Oversold, t.Overbought)
	}
	return nil
}

// inPercentRange is false for NaN, which fails every comparison.
func inPercentRange(v float64) bool { return v >= 0 && v <= 100 }

// TickerReport is the outcome for one ticker in one cycle.
type TickerReport struct {
	Ticker    string
	RSI       RSIResult
	Signal    Signal
	LastClose float64 // 0 when no valid close was fetched
	Points    int
	Err       string // fetch or data error, empty on success
	At        time.Time
}

// CycleReport is the sorted set of TickerReports for one screening pass.
type CycleReport struct {
	Tickers    []TickerReport
	Thresholds Thresholds
	Lookback   int
	StartedAt  time.Time
	Duration   time.Duration
}

// Count returns how many reports carry the given signal.
func (c *CycleReport) Count(sig Signal) int {
	n := 0
	for _, t := range c.Tickers {
		if t.Signal == sig {
			n++
		}
	}
	return n
}

// Alert is the notification payload for a ticker that crossed a threshold.
type Alert struct {
	Ticker    string
	RSI       float64
	Signal    Signal
	Threshold float64
	LastClose float64
	At        time.Time
}
