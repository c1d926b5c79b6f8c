package notifier

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RSIScreener/internal/model"
)

func TestWriteCycleReport(t *testing.T) {
	report := sampleReport()
	report.Tickers[3].Err = strings.Repeat("x", 80)

	var buf bytes.Buffer
	require.NoError(t, WriteCycleReport(&buf, report))
	out := buf.String()

	assert.Contains(t, out, "RSI(14) screen | 2026-10-16 15:30:00 | overbought >= 70, oversold <= 30")
	assert.Contains(t, out, "4 tickers: 1 overbought, 1 oversold, 1 neutral, 1 unavailable")
	assert.Contains(t, out, strings.Repeat("x", 47)+"...")
	assert.NotContains(t, out, strings.Repeat("x", 48))

	nvda := strings.Index(out, "NVDA")
	msft := strings.Index(out, "MSFT")
	intc := strings.Index(out, "INTC")
	xxxx := strings.Index(out, "XXXX")
	assert.True(t, nvda < msft && msft < intc && intc < xxxx, "rows out of order:\n%s", out)

	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "XXXX") {
			assert.Contains(t, line, "n/a")
			assert.Contains(t, line, "N/A")
			assert.Contains(t, line, "UNAVAILABLE")
		}
		if strings.HasPrefix(line, "NVDA") {
			assert.Contains(t, line, "$131.20")
			assert.Contains(t, line, "78.40")
		}
	}
}

func TestFormatAlertLine(t *testing.T) {
	assert.Equal(t, "OVERBOUGHT AAPL RSI=70.0 (>=70)",
		FormatAlertLine(model.Alert{Ticker: "AAPL", RSI: 70, Signal: model.SignalOverbought, Threshold: 70}))
	assert.Equal(t, "OVERSOLD AAPL RSI=24.3 (<=30)",
		FormatAlertLine(model.Alert{Ticker: "AAPL", RSI: 24.26, Signal: model.SignalOversold, Threshold: 30}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ééééééé...", truncate(strings.Repeat("é", 20), 10))
}
