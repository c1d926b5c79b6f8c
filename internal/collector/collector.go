package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"RSIScreener/internal/calculator"
	"RSIScreener/internal/model"
	"RSIScreener/internal/strategy"
)

// StaticFetcher serves fixed series per ticker, for development and tests.
// Tickers listed in Errors fail with the given error; Delays hold a fetch
// back to simulate completion order.
type StaticFetcher struct {
	Series map[string][]float64
	Errors map[string]error
	Delays map[string]time.Duration
}

func (m *StaticFetcher) Name() string { return "static" }

func (m *StaticFetcher) Fetch(ctx context.Context, ticker, _, _ string) (model.PriceSeries, error) {
	if d := m.Delays[ticker]; d > 0 {
		select {
		case <-ctx.Done():
			return model.PriceSeries{}, ctx.Err()
		case <-time.After(d):
		}
	}
	if err, ok := m.Errors[ticker]; ok {
		return model.PriceSeries{}, err
	}
	closes, ok := m.Series[ticker]
	if !ok {
		return model.PriceSeries{}, fmt.Errorf("static: %s: %w", ticker, ErrNoData)
	}
	start := time.Now().AddDate(0, 0, -len(closes))
	points := make([]model.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = model.PricePoint{Time: start.AddDate(0, 0, i), Close: c}
	}
	return model.PriceSeries{Symbol: ticker, Points: points, FetchedAt: time.Now()}, nil
}

// FetchObserver receives per-ticker fetch outcomes.
type FetchObserver interface {
	ObserveFetch(ticker string, elapsed time.Duration, err error)
}

// Options controls one screening cycle.
type Options struct {
	Period       string
	Interval     string
	Lookback     int
	Thresholds   model.Thresholds
	Workers      int
	FetchTimeout time.Duration
}

// Screener runs the fetch -> RSI -> classify pipeline over a ticker set.
type Screener struct {
	Fetcher  Fetcher
	Tickers  []string
	Options  Options
	Observer FetchObserver
	now      func() time.Time
}

// NewScreener creates a Screener. Tickers are expected to be merged and
// deduplicated already (see MergeTickers).
func NewScreener(fetcher Fetcher, tickers []string, opts Options) *Screener {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Screener{Fetcher: fetcher, Tickers: tickers, Options: opts, now: time.Now}
}

// RunCycle screens every ticker and returns the sorted report. Per-ticker
// failures are recorded as UNAVAILABLE and never abort the cycle. Workers
// write only their own slot; the sort runs after all of them finish, so the
// order is independent of completion order.
func (s *Screener) RunCycle(ctx context.Context) *model.CycleReport {
	started := s.now()
	reports := make([]model.TickerReport, len(s.Tickers))

	var g errgroup.Group
	g.SetLimit(s.Options.Workers)
	for i, ticker := range s.Tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			reports[i] = s.screenTicker(ctx, ticker)
			return nil
		})
	}
	_ = g.Wait()

	SortReports(reports)
	return &model.CycleReport{
		Tickers:    reports,
		Thresholds: s.Options.Thresholds,
		Lookback:   s.Options.Lookback,
		StartedAt:  started,
		Duration:   s.now().Sub(started),
	}
}

func (s *Screener) screenTicker(ctx context.Context, ticker string) (tr model.TickerReport) {
	tr = model.TickerReport{Ticker: ticker, Signal: model.SignalUnavailable, At: s.now()}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] %s: provider panic: %v", ticker, r)
			tr = model.TickerReport{Ticker: ticker, Signal: model.SignalUnavailable, Err: fmt.Sprintf("panic: %v", r), At: s.now()}
		}
	}()

	if err := ctx.Err(); err != nil {
		tr.Err = "cancelled before fetch"
		return tr
	}

	series, err := s.fetch(ctx, ticker)
	if err != nil {
		log.Printf("[WARN] %s: %v", ticker, err)
		tr.Err = err.Error()
		return tr
	}

	tr.Points = series.Len()
	if c, ok := series.LastClose(); ok {
		tr.LastClose = c
	}
	rsi, err := calculator.SeriesRSI(series, s.Options.Lookback)
	if err != nil {
		tr.Err = err.Error()
		return tr
	}
	if !rsi.Defined {
		tr.Err = fmt.Sprintf("insufficient data: %d closes for lookback %d", len(series.Closes()), s.Options.Lookback)
	}
	tr.RSI = rsi
	tr.Signal = strategy.Classify(rsi, s.Options.Thresholds)
	return tr
}

func (s *Screener) fetch(ctx context.Context, ticker string) (model.PriceSeries, error) {
	if s.Options.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Options.FetchTimeout)
		defer cancel()
	}
	start := time.Now()
	series, err := s.Fetcher.Fetch(ctx, ticker, s.Options.Period, s.Options.Interval)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %v", ErrFetchTimeout, s.Options.FetchTimeout, err)
	}
	if s.Observer != nil {
		s.Observer.ObserveFetch(ticker, time.Since(start), err)
	}
	return series, err
}

// SortReports orders reports by RSI descending, ties by ticker. Entries
// without a defined RSI go last, ordered by ticker.
func SortReports(reports []model.TickerReport) {
	sort.Slice(reports, func(i, j int) bool {
		a, b := reports[i], reports[j]
		if a.RSI.Defined != b.RSI.Defined {
			return a.RSI.Defined
		}
		if a.RSI.Defined && a.RSI.Value != b.RSI.Value {
			return a.RSI.Value > b.RSI.Value
		}
		return a.Ticker < b.Ticker
	})
}
