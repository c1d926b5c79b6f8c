package calculator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RSIScreener/internal/model"
)

func TestCalculateRSI_TextbookSeries(t *testing.T) {
	closes := []float64{44, 44.25, 44.5, 43.75, 44.5, 44.83, 45.33, 45.1, 45.42, 45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28}

	rsi, err := CalculateRSI(closes, 14)
	require.NoError(t, err)
	require.True(t, rsi.Defined)
	assert.InDelta(t, 70.5, rsi.Value, 0.5)
	assert.InDelta(t, 70.87912087912, rsi.Value, 1e-9)
}

func TestCalculateRSI_WilderSmoothing(t *testing.T) {
	// +2 -1 +2 -1 +2 over a lookback of 3
	closes := []float64{100, 102, 101, 103, 102, 104}

	rsi, err := CalculateRSI(closes, 3)
	require.NoError(t, err)
	assert.InDelta(t, 77.272727, rsi.Value, 1e-6)
}

func TestCalculateRSI_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		closes   []float64
		lookback int
		defined  bool
		want     float64
	}{
		{"strictly increasing", []float64{1, 2, 3, 4, 5, 6}, 3, true, 100},
		{"strictly decreasing", []float64{6, 5, 4, 3, 2, 1}, 3, true, 0},
		{"flat series hits zero-loss rule", []float64{10, 10, 10, 10, 10}, 3, true, 100},
		{"exactly lookback+1 points", []float64{1, 2, 1, 2}, 3, true, 66.666666},
		{"one short of lookback+1", []float64{1, 2, 3}, 3, false, 0},
		{"empty series", nil, 14, false, 0},
		{"lookback of one", []float64{5, 4}, 1, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi, err := CalculateRSI(tt.closes, tt.lookback)
			require.NoError(t, err)
			assert.Equal(t, tt.defined, rsi.Defined)
			if tt.defined {
				assert.InDelta(t, tt.want, rsi.Value, 1e-5)
			}
		})
	}
}

func TestCalculateRSI_InvalidLookback(t *testing.T) {
	rsi, err := CalculateRSI([]float64{1, 2, 3}, 0)
	assert.ErrorIs(t, err, ErrInvalidLookback)
	assert.False(t, rsi.Defined)
}

func TestCalculateRSI_Deterministic(t *testing.T) {
	closes := []float64{10, 11, 10.5, 12, 11.7, 11.9, 12.4, 12.1, 12.8}
	first, err := CalculateRSI(closes, 5)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := CalculateRSI(closes, 5)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSeriesRSI_SkipsMissingCloses(t *testing.T) {
	now := time.Now()
	series := model.PriceSeries{Symbol: "AAPL", Points: []model.PricePoint{
		{Time: now.Add(-4 * time.Hour), Close: 1},
		{Time: now.Add(-3 * time.Hour), Close: math.NaN()},
		{Time: now.Add(-2 * time.Hour), Close: 2},
		{Time: now.Add(-1 * time.Hour), Close: 3},
		{Time: now, Close: 4},
	}}

	rsi, err := SeriesRSI(series, 3)
	require.NoError(t, err)
	assert.True(t, rsi.Defined)
	assert.Equal(t, 100.0, rsi.Value)

	// Dropping the gap leaves too few points for a longer lookback.
	rsi, err = SeriesRSI(series, 4)
	require.NoError(t, err)
	assert.False(t, rsi.Defined)
}
