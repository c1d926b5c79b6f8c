package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"RSIScreener/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// DefaultSymbolMap maps user symbols to the Yahoo ticker that now carries
// their quotes (index aliases, corporate actions, exchange suffixes).
var DefaultSymbolMap = map[string]string{
	"SPX500": "^GSPC",
	"SPX":    "^GSPC",
	"SP500":  "^GSPC",
	"CS":     "UBS",
	"ALV":    "ALV.DE",
	"BN":     "BN.PA",
	"ENGI":   "ENGI.PA",
	"EOAN":   "EOAN.DE",
	"MUV2":   "MUV2.DE",
	"NESN":   "NESN.SW",
	"RWE":    "RWE.DE",
	"UNA":    "UNA.AS",
	"VIE":    "VIE.PA",
}

// Yahoo accepts these range tokens directly.
var yahooRanges = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
}

var yahooIntervals = map[string]bool{
	"1m": true, "2m": true, "5m": true, "15m": true, "30m": true, "60m": true, "90m": true,
	"1h": true, "1d": true, "5d": true, "1wk": true, "1mo": true, "3mo": true,
}

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps user symbol to Yahoo ticker
	now       func() time.Time
}

// NewYahooFetcher creates a Yahoo fetcher with optional proxy support. Extra
// aliases override the defaults.
func NewYahooFetcher(proxyURL string, aliases map[string]string) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	symbols := make(map[string]string, len(DefaultSymbolMap)+len(aliases))
	for k, v := range DefaultSymbolMap {
		symbols[k] = v
	}
	for k, v := range upperAliases(aliases) {
		symbols[k] = v
	}
	return &YahooFetcher{
		BaseURL: yahooBaseURL,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		SymbolMap: symbols,
		now:       time.Now,
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func upperAliases(aliases map[string]string) map[string]string {
	out := make(map[string]string, len(aliases))
	for k, v := range aliases {
		out[strings.ToUpper(k)] = strings.ToUpper(v)
	}
	return out
}

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// chartQuery turns a period token into Yahoo query parameters. Native range
// tokens pass through; "<n>d", "<n>wk", "<n>mo" and "<n>y" become an explicit
// period1/period2 window ending now.
func (f *YahooFetcher) chartQuery(period, interval string) (url.Values, error) {
	if !yahooIntervals[interval] {
		return nil, fmt.Errorf("yahoo: unsupported interval %q", interval)
	}
	q := url.Values{}
	q.Set("interval", interval)
	q.Set("includePrePost", "false")

	if yahooRanges[period] {
		q.Set("range", period)
		return q, nil
	}
	span, err := parsePeriod(period)
	if err != nil {
		return nil, err
	}
	now := f.now()
	q.Set("period1", strconv.FormatInt(now.Add(-span).Unix(), 10))
	q.Set("period2", strconv.FormatInt(now.Unix(), 10))
	return q, nil
}

func parsePeriod(period string) (time.Duration, error) {
	units := []struct {
		suffix string
		unit   time.Duration
	}{
		{"wk", 7 * 24 * time.Hour},
		{"mo", 30 * 24 * time.Hour},
		{"d", 24 * time.Hour},
		{"y", 365 * 24 * time.Hour},
	}
	for _, u := range units {
		if !strings.HasSuffix(period, u.suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(period, u.suffix))
		if err != nil || n <= 0 {
			break
		}
		return time.Duration(n) * u.unit, nil
	}
	return 0, fmt.Errorf("yahoo: unsupported period %q", period)
}

// Fetch returns the closes for ticker. Null closes (holidays, halted
// sessions) are skipped.
func (f *YahooFetcher) Fetch(ctx context.Context, ticker, period, interval string) (model.PriceSeries, error) {
	q, err := f.chartQuery(period, interval)
	if err != nil {
		return model.PriceSeries{}, err
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.BaseURL, url.PathEscape(f.yahooSymbol(ticker)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.PriceSeries{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("yahoo read body: %w", err)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		if resp.StatusCode != http.StatusOK {
			return model.PriceSeries{}, fmt.Errorf("yahoo: status %d", resp.StatusCode)
		}
		return model.PriceSeries{}, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return model.PriceSeries{}, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return model.PriceSeries{}, fmt.Errorf("yahoo: status %d", resp.StatusCode)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return model.PriceSeries{}, fmt.Errorf("yahoo: %w", ErrNoData)
	}

	result := chart.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	points := make([]model.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		points = append(points, model.PricePoint{Time: time.Unix(ts, 0), Close: *closes[i]})
	}
	if len(points) == 0 {
		return model.PriceSeries{}, fmt.Errorf("yahoo: %w", ErrNoData)
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return model.PriceSeries{Symbol: ticker, Points: points, FetchedAt: f.now()}, nil
}
