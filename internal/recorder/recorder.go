package recorder

import (
	"context"
	"time"

	"RSIScreener/internal/model"
)

// Delivery statuses.
const (
	StatusSent   = "SENT"
	StatusFailed = "FAILED"
)

// Delivery is one alert handed to one notification channel. RSI values are
// deliberately not part of the record.
type Delivery struct {
	Ticker  string
	Signal  model.Signal
	Channel string
	Status  string
	Error   string
	SentAt  time.Time
}

// Recorder keeps the alert delivery ledger used for notification cooldowns.
type Recorder interface {
	RecordDelivery(ctx context.Context, d *Delivery) error
	// LastSent returns the most recent successful delivery time of an alert
	// for ticker+signal on any channel.
	LastSent(ctx context.Context, ticker string, signal model.Signal) (time.Time, bool, error)
	Close() error
}
