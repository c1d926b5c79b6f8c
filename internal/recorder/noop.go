package recorder

import (
	"context"
	"time"

	"RSIScreener/internal/model"
)

// NoopRecorder is a no-op implementation used when no ledger is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordDelivery(context.Context, *Delivery) error { return nil }
func (n *NoopRecorder) LastSent(context.Context, string, model.Signal) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
func (n *NoopRecorder) Close() error { return nil }
