package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"RSIScreener/internal/model"
)

// RESTFetcher implements Fetcher against a self-hosted bars API:
// GET {base}/api/v1/bars?symbol=..&period=..&interval=.. returning a JSON
// array of {timestamp, close}.
type RESTFetcher struct {
	BaseURL   string
	APIKey    string
	Client    *http.Client
	SymbolMap map[string]string // user symbol to the API's symbol
}

// NewRESTFetcher creates a new fetcher with optional proxy support. Only the
// given aliases apply; the Yahoo exchange suffixes in DefaultSymbolMap do not.
func NewRESTFetcher(baseURL, apiKey, proxyURL string, aliases map[string]string) *RESTFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		SymbolMap: upperAliases(aliases),
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the expected JSON shape from the bars API. A null close marks a
// missing bar.
type restBar struct {
	Timestamp int64    `json:"timestamp"`
	Close     *float64 `json:"close"`
}

func (f *RESTFetcher) Fetch(ctx context.Context, ticker, period, interval string) (model.PriceSeries, error) {
	q := url.Values{}
	symbol := ticker
	if mapped, ok := f.SymbolMap[ticker]; ok {
		symbol = mapped
	}
	q.Set("symbol", symbol)
	q.Set("period", period)
	q.Set("interval", interval)
	endpoint := fmt.Sprintf("%s/api/v1/bars?%s", f.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.PriceSeries{}, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("fetch bars: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.PriceSeries{}, fmt.Errorf("fetch bars: status %d, body: %s", resp.StatusCode, string(body))
	}

	var bars []restBar
	if err := json.NewDecoder(resp.Body).Decode(&bars); err != nil {
		return model.PriceSeries{}, fmt.Errorf("decode bars: %w", err)
	}
	points := make([]model.PricePoint, 0, len(bars))
	for _, b := range bars {
		if b.Close == nil {
			continue
		}
		points = append(points, model.PricePoint{Time: time.Unix(b.Timestamp, 0), Close: *b.Close})
	}
	if len(points) == 0 {
		return model.PriceSeries{}, fmt.Errorf("fetch bars: %w", ErrNoData)
	}
	// Ensure chronological order
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return model.PriceSeries{Symbol: ticker, Points: points, FetchedAt: time.Now()}, nil
}
