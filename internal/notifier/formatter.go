package notifier

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"RSIScreener/internal/model"
)

const maxErrLen = 50

// WriteCycleReport renders the cycle as a table sorted the way the report
// already is: highest RSI first, unavailable tickers last.
func WriteCycleReport(w io.Writer, report *model.CycleReport) error {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("\nRSI(%d) screen | %s | overbought >= %.0f, oversold <= %.0f\n\n",
		report.Lookback, report.StartedAt.Format("2006-01-02 15:04:05"),
		report.Thresholds.Overbought, report.Thresholds.Oversold))

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tPRICE\tRSI\tSIGNAL\tTIME\tNOTE")
	for _, t := range report.Tickers {
		price := "n/a"
		if t.LastClose > 0 {
			price = fmt.Sprintf("$%.2f", t.LastClose)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Ticker, price, t.RSI, t.Signal, t.At.Format("15:04:05"), truncate(t.Err, maxErrLen))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	b.WriteString(fmt.Sprintf("\n%d tickers: %d overbought, %d oversold, %d neutral, %d unavailable (%s)\n",
		len(report.Tickers),
		report.Count(model.SignalOverbought), report.Count(model.SignalOversold),
		report.Count(model.SignalNeutral), report.Count(model.SignalUnavailable),
		report.Duration.Round(time.Millisecond)))

	_, err := io.WriteString(w, b.String())
	return err
}

// Message is what a Sender delivers: a subject, a detailed body, a compact
// body for length-limited channels, and the structured alerts.
type Message struct {
	Subject string
	Body    string
	Short   string
	Alerts  []model.Alert
}

// BuildMessage formats the alerts of one cycle into a single message.
func BuildMessage(alerts []model.Alert) Message {
	var body, short strings.Builder
	for i, a := range alerts {
		if i > 0 {
			body.WriteString("\n")
			short.WriteString("\n")
		}
		body.WriteString(FormatAlert(a))
		short.WriteString(FormatAlertLine(a))
	}
	return Message{
		Subject: fmt.Sprintf("RSI Screener Alert: %d ticker(s)", len(alerts)),
		Body:    body.String(),
		Short:   short.String(),
		Alerts:  alerts,
	}
}

// FormatAlertLine renders a one-line alert, e.g. "OVERSOLD AAPL RSI=24.3 (<=30)".
func FormatAlertLine(a model.Alert) string {
	op := ">="
	if a.Signal == model.SignalOversold {
		op = "<="
	}
	return fmt.Sprintf("%s %s RSI=%.1f (%s%.0f)", a.Signal, a.Ticker, a.RSI, op, a.Threshold)
}

// FormatAlert renders the detailed multi-line alert.
func FormatAlert(a model.Alert) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s ALERT - %s\n", a.Signal, a.At.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("Stock: %s\n", a.Ticker))
	if a.LastClose > 0 {
		b.WriteString(fmt.Sprintf("Current Price: $%.2f\n", a.LastClose))
	}
	if a.Signal == model.SignalOversold {
		b.WriteString(fmt.Sprintf("RSI: %.2f (at or below %.0f)\n", a.RSI, a.Threshold))
		b.WriteString("Signal: Potential Buy Opportunity\n")
	} else {
		b.WriteString(fmt.Sprintf("RSI: %.2f (at or above %.0f)\n", a.RSI, a.Threshold))
		b.WriteString("Signal: Potential Sell Opportunity\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
