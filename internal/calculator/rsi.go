package calculator

import (
	"errors"

	"RSIScreener/internal/model"
)

// ErrInvalidLookback is returned when the lookback is below 1.
var ErrInvalidLookback = errors.New("lookback must be at least 1")

// CalculateRSI computes the Wilder-smoothed RSI over the given lookback.
// Requires at least lookback+1 closes; shorter input yields an undefined
// result, not an error. When the final average loss is zero the RSI is 100,
// which also covers a completely flat series.
func CalculateRSI(closes []float64, lookback int) (model.RSIResult, error) {
	if lookback < 1 {
		return model.UndefinedRSI(), ErrInvalidLookback
	}
	if len(closes) < lookback+1 {
		return model.UndefinedRSI(), nil
	}

	// Seed with the simple mean of the first `lookback` changes
	var avgGain, avgLoss float64
	for i := 1; i <= lookback; i++ {
		gain, loss := split(closes[i] - closes[i-1])
		avgGain += gain
		avgLoss += loss
	}
	avgGain /= float64(lookback)
	avgLoss /= float64(lookback)

	// Wilder smoothing for the remaining changes
	for i := lookback + 1; i < len(closes); i++ {
		gain, loss := split(closes[i] - closes[i-1])
		avgGain = (avgGain*float64(lookback-1) + gain) / float64(lookback)
		avgLoss = (avgLoss*float64(lookback-1) + loss) / float64(lookback)
	}

	if avgLoss == 0 {
		return model.RSIValue(100), nil
	}
	rs := avgGain / avgLoss
	return model.RSIValue(100 - 100/(1+rs)), nil
}

// SeriesRSI computes the RSI over the valid closes of a series.
func SeriesRSI(series model.PriceSeries, lookback int) (model.RSIResult, error) {
	return CalculateRSI(series.Closes(), lookback)
}

func split(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}
