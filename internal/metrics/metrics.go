// Package metrics exposes Prometheus instrumentation for screening cycles,
// provider fetches and alert deliveries.
package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"RSIScreener/internal/model"
)

// Metrics holds all Prometheus metrics for the screener.
type Metrics struct {
	Registry *prometheus.Registry

	CyclesTotal       prometheus.Counter
	CycleDuration     prometheus.Histogram
	LastCycleUnix     prometheus.Gauge
	TickerSignals     *prometheus.CounterVec // labels: signal
	FetchDuration     prometheus.Histogram
	FetchErrorsTotal  prometheus.Counter
	DeliveriesTotal   *prometheus.CounterVec // labels: channel, status
	SchedulerSleeping prometheus.Gauge
}

// New creates the metrics on their own registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsi_screener_cycles_total",
			Help: "Completed screening cycles",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rsi_screener_cycle_duration_seconds",
			Help:    "Wall-clock duration of a screening cycle",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		LastCycleUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rsi_screener_last_cycle_timestamp_seconds",
			Help: "Unix time the last cycle finished",
		}),
		TickerSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsi_screener_ticker_signals_total",
			Help: "Per-ticker results by signal",
		}, []string{"signal"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rsi_screener_fetch_duration_seconds",
			Help:    "Provider fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		FetchErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsi_screener_fetch_errors_total",
			Help: "Provider fetches that failed or timed out",
		}),
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsi_screener_deliveries_total",
			Help: "Alert deliveries by channel and status",
		}, []string{"channel", "status"}),
		SchedulerSleeping: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rsi_screener_scheduler_sleeping",
			Help: "1 while the continuous loop waits for the next cycle",
		}),
	}
	m.Registry.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.LastCycleUnix,
		m.TickerSignals,
		m.FetchDuration,
		m.FetchErrorsTotal,
		m.DeliveriesTotal,
		m.SchedulerSleeping,
	)
	return m
}

// ObserveFetch implements collector.FetchObserver.
func (m *Metrics) ObserveFetch(_ string, elapsed time.Duration, err error) {
	m.FetchDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.FetchErrorsTotal.Inc()
	}
}

// ObserveDelivery implements notifier.DeliveryObserver.
func (m *Metrics) ObserveDelivery(channel string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.DeliveriesTotal.WithLabelValues(channel, status).Inc()
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(report *model.CycleReport) {
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(report.Duration.Seconds())
	m.LastCycleUnix.Set(float64(report.StartedAt.Add(report.Duration).Unix()))
	for _, t := range report.Tickers {
		m.TickerSignals.WithLabelValues(string(t.Signal)).Inc()
	}
}

// SetSleeping flags whether the scheduler is between cycles.
func (m *Metrics) SetSleeping(sleeping bool) {
	if sleeping {
		m.SchedulerSleeping.Set(1)
		return
	}
	m.SchedulerSleeping.Set(0)
}

// Server runs an HTTP server exposing /metrics.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics server for the given registry.
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[INFO] metrics server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[ERROR] metrics server: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	_ = s.srv.Shutdown(ctx)
}
