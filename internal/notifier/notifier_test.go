package notifier

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RSIScreener/internal/model"
	"RSIScreener/internal/recorder"
)

type fakeSender struct {
	mu       sync.Mutex
	name     string
	failures int // fail this many times before succeeding; -1 fails forever
	calls    int
	got      []Message
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures < 0 || f.calls <= f.failures {
		return errors.New("transport down")
	}
	f.got = append(f.got, msg)
	return nil
}

type deliveryCounter struct {
	ok, failed int
}

func (d *deliveryCounter) ObserveDelivery(_ string, err error) {
	if err != nil {
		d.failed++
		return
	}
	d.ok++
}

func sampleReport() *model.CycleReport {
	at := time.Date(2026, 10, 16, 15, 30, 0, 0, time.UTC)
	return &model.CycleReport{
		Thresholds: model.DefaultThresholds(),
		Lookback:   14,
		StartedAt:  at,
		Tickers: []model.TickerReport{
			{Ticker: "NVDA", RSI: model.RSIValue(78.4), Signal: model.SignalOverbought, LastClose: 131.2, At: at},
			{Ticker: "MSFT", RSI: model.RSIValue(55.1), Signal: model.SignalNeutral, LastClose: 420, At: at},
			{Ticker: "INTC", RSI: model.RSIValue(21.9), Signal: model.SignalOversold, LastClose: 20.05, At: at},
			{Ticker: "XXXX", Signal: model.SignalUnavailable, Err: "no data", At: at},
		},
	}
}

func newTestDispatcher(senders []Sender, ledger recorder.Recorder, retries int) *Dispatcher {
	d := NewDispatcher(senders, ledger, retries, 0)
	d.Backoff = time.Millisecond
	return d
}

func TestDispatcher_SendsOnlyActionableAlerts(t *testing.T) {
	s := &fakeSender{name: "webhook"}
	d := newTestDispatcher([]Sender{s}, nil, 0)

	alerts, err := d.Notify(context.Background(), sampleReport())
	require.NoError(t, err)

	require.Len(t, alerts, 2)
	require.Len(t, s.got, 1)
	msg := s.got[0]
	assert.Len(t, msg.Alerts, 2)
	assert.Contains(t, msg.Short, "OVERBOUGHT NVDA RSI=78.4 (>=70)")
	assert.Contains(t, msg.Short, "OVERSOLD INTC RSI=21.9 (<=30)")
	assert.NotContains(t, msg.Body, "MSFT")
	assert.NotContains(t, msg.Body, "XXXX")
}

func TestDispatcher_NoAlertsNoSend(t *testing.T) {
	s := &fakeSender{name: "webhook"}
	d := newTestDispatcher([]Sender{s}, nil, 0)
	report := &model.CycleReport{Thresholds: model.DefaultThresholds(), Tickers: []model.TickerReport{
		{Ticker: "MSFT", RSI: model.RSIValue(50), Signal: model.SignalNeutral},
	}}

	alerts, err := d.Notify(context.Background(), report)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Zero(t, s.calls)
}

func TestDispatcher_RetriesThenSucceeds(t *testing.T) {
	s := &fakeSender{name: "email", failures: 2}
	d := newTestDispatcher([]Sender{s}, nil, 2)

	_, err := d.Notify(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, 3, s.calls)
	assert.Len(t, s.got, 1)
}

func TestDispatcher_FailingChannelDoesNotBlockOthers(t *testing.T) {
	broken := &fakeSender{name: "sms", failures: -1}
	healthy := &fakeSender{name: "webhook"}
	obs := &deliveryCounter{}
	d := newTestDispatcher([]Sender{broken, healthy}, nil, 1)
	d.Observer = obs

	_, err := d.Notify(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sms")
	assert.Equal(t, 2, broken.calls)
	assert.Len(t, healthy.got, 1)
	assert.Equal(t, 1, obs.ok)
	assert.Equal(t, 1, obs.failed)
}

func TestDispatcher_CooldownSuppressesRepeats(t *testing.T) {
	ledger, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()

	s := &fakeSender{name: "webhook"}
	d := newTestDispatcher([]Sender{s}, ledger, 0)
	d.Cooldown = time.Hour
	now := time.Date(2026, 10, 16, 16, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	first, err := d.Notify(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Len(t, first, 2)

	now = now.Add(30 * time.Minute)
	second, err := d.Notify(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, 1, s.calls)

	now = now.Add(time.Hour)
	third, err := d.Notify(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Len(t, third, 2)
	assert.Equal(t, 2, s.calls)
}

func TestDispatcher_FailedDeliveryDoesNotStartCooldown(t *testing.T) {
	ledger, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()

	s := &fakeSender{name: "email", failures: 1}
	d := newTestDispatcher([]Sender{s}, ledger, 0)
	d.Cooldown = time.Hour

	_, err = d.Notify(context.Background(), sampleReport())
	require.Error(t, err)

	alerts, err := d.Notify(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
}

func TestDispatcher_ContextCancelStopsRetry(t *testing.T) {
	s := &fakeSender{name: "email", failures: -1}
	d := NewDispatcher([]Sender{s}, nil, 5, 0)
	d.Backoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := d.Notify(ctx, sampleReport())
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, s.calls)
}
