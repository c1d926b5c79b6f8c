package notifier

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"RSIScreener/internal/model"
	"RSIScreener/internal/recorder"
	"RSIScreener/internal/strategy"
)

// Sender delivers a message over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// DeliveryObserver receives per-channel delivery outcomes.
type DeliveryObserver interface {
	ObserveDelivery(channel string, err error)
}

// Dispatcher turns a cycle report into at most one message per channel.
// Only OVERBOUGHT and OVERSOLD tickers trigger; a failing channel never
// blocks the others and never aborts the caller's cycle.
type Dispatcher struct {
	Senders  []Sender
	Ledger   recorder.Recorder
	Observer DeliveryObserver
	Retries  int
	Backoff  time.Duration // first retry delay, doubled per attempt
	Cooldown time.Duration // 0 disables suppression
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher. A nil ledger falls back to a no-op one.
func NewDispatcher(senders []Sender, ledger recorder.Recorder, retries int, cooldown time.Duration) *Dispatcher {
	if ledger == nil {
		ledger = recorder.NewNoopRecorder()
	}
	return &Dispatcher{
		Senders:  senders,
		Ledger:   ledger,
		Retries:  retries,
		Backoff:  time.Second,
		Cooldown: cooldown,
		now:      time.Now,
	}
}

// Notify sends the actionable alerts of report to every sender. It returns
// the alerts that were dispatched and a joined error for failed channels.
func (d *Dispatcher) Notify(ctx context.Context, report *model.CycleReport) ([]model.Alert, error) {
	alerts := d.filterCooldown(ctx, strategy.Alerts(report))
	if len(alerts) == 0 || len(d.Senders) == 0 {
		return alerts, nil
	}

	msg := BuildMessage(alerts)
	var errs []error
	for _, s := range d.Senders {
		err := d.sendWithRetry(ctx, s, msg)
		if d.Observer != nil {
			d.Observer.ObserveDelivery(s.Name(), err)
		}
		d.record(ctx, s.Name(), alerts, err)
		if err != nil {
			log.Printf("[ERROR] notify %s: %v", s.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		log.Printf("[INFO] %s alert sent (%d tickers)", s.Name(), len(alerts))
	}
	return alerts, errors.Join(errs...)
}

func (d *Dispatcher) filterCooldown(ctx context.Context, alerts []model.Alert) []model.Alert {
	if d.Cooldown <= 0 {
		return alerts
	}
	now := d.now()
	kept := alerts[:0:0]
	for _, a := range alerts {
		last, ok, err := d.Ledger.LastSent(ctx, a.Ticker, a.Signal)
		if err != nil {
			log.Printf("[WARN] ledger lookup %s: %v", a.Ticker, err)
		}
		if ok && now.Sub(last) < d.Cooldown {
			log.Printf("[INFO] %s %s suppressed, last sent %s ago", a.Ticker, a.Signal, now.Sub(last).Round(time.Second))
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

func (d *Dispatcher) record(ctx context.Context, channel string, alerts []model.Alert, sendErr error) {
	status, errText := recorder.StatusSent, ""
	if sendErr != nil {
		status, errText = recorder.StatusFailed, sendErr.Error()
	}
	at := d.now()
	for _, a := range alerts {
		if err := d.Ledger.RecordDelivery(ctx, &recorder.Delivery{
			Ticker: a.Ticker, Signal: a.Signal, Channel: channel,
			Status: status, Error: errText, SentAt: at,
		}); err != nil {
			log.Printf("[ERROR] record delivery: %v", err)
		}
	}
}

// sendWithRetry sends a message with exponential backoff retry.
func (d *Dispatcher) sendWithRetry(ctx context.Context, s Sender, msg Message) error {
	var lastErr error
	for i := 0; i <= d.Retries; i++ {
		err := s.Send(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == d.Retries {
			break
		}
		backoff := d.Backoff * time.Duration(1<<uint(i))
		log.Printf("[WARN] %s send failed (attempt %d/%d): %v, retrying in %v", s.Name(), i+1, d.Retries+1, err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", d.Retries+1, lastErr)
}
