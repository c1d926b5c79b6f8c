package collector

import (
	"context"
	"errors"

	"RSIScreener/internal/model"
)

var (
	// ErrNoData is returned when a provider answers but has no closes for the ticker.
	ErrNoData = errors.New("no data")
	// ErrFetchTimeout is returned when a fetch exceeds its deadline.
	ErrFetchTimeout = errors.New("fetch timed out")
)

// Fetcher retrieves a time-ordered close series for a ticker. Period and
// interval are opaque tokens ("90d", "1d") validated by the implementation.
type Fetcher interface {
	Fetch(ctx context.Context, ticker, period, interval string) (model.PriceSeries, error)
	Name() string
}
