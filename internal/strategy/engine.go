package strategy

import "RSIScreener/internal/model"

// Classify maps an RSI result to a signal. Both bounds are inclusive: a value
// equal to a threshold triggers that signal.
func Classify(rsi model.RSIResult, t model.Thresholds) model.Signal {
	switch {
	case !rsi.Defined:
		return model.SignalUnavailable
	case rsi.Value >= t.Overbought:
		return model.SignalOverbought
	case rsi.Value <= t.Oversold:
		return model.SignalOversold
	default:
		return model.SignalNeutral
	}
}

// Alerts extracts the notification payloads from a cycle report, in report
// order. Only OVERBOUGHT and OVERSOLD tickers produce an alert.
func Alerts(report *model.CycleReport) []model.Alert {
	var alerts []model.Alert
	for _, tr := range report.Tickers {
		if !tr.Signal.Actionable() {
			continue
		}
		threshold := report.Thresholds.Overbought
		if tr.Signal == model.SignalOversold {
			threshold = report.Thresholds.Oversold
		}
		alerts = append(alerts, model.Alert{
			Ticker:    tr.Ticker,
			RSI:       tr.RSI.Value,
			Signal:    tr.Signal,
			Threshold: threshold,
			LastClose: tr.LastClose,
			At:        tr.At,
		})
	}
	return alerts
}
