package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RSIScreener/internal/collector"
	"RSIScreener/internal/config"
	"RSIScreener/internal/metrics"
	"RSIScreener/internal/notifier"
	"RSIScreener/internal/recorder"
	"RSIScreener/internal/scheduler"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Parse(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}
	tickers, err := cfg.TickerList()
	if err != nil {
		log.Fatalf("[FATAL] tickers: %v", err)
	}
	log.Printf("[INFO] RSI screener starting: %d tickers, %s", len(tickers), cfg.Summary())

	// Init fetcher
	fetcher := cfg.Fetcher()
	log.Printf("[INFO] data source: %s", fetcher.Name())

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, m)
		srv.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(ctx)
		}()
	}

	screener := collector.NewScreener(fetcher, tickers, cfg.ScreenerOptions())
	screener.Observer = m

	// Init alert ledger
	var ledger recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.LedgerPath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.LedgerPath)
		if err != nil {
			log.Printf("[WARN] init sqlite ledger failed, using noop: %v", err)
		} else {
			ledger = sr
		}
	}
	defer ledger.Close()

	senders := cfg.Senders()
	if len(senders) == 0 {
		log.Println("[INFO] no notification channels configured, console only")
	}
	dispatcher := notifier.NewDispatcher(senders, ledger, cfg.Notify.Retries, cfg.Notify.Cooldown)
	dispatcher.Observer = m

	sched := scheduler.NewScheduler(screener, dispatcher, os.Stdout, cfg.IntervalDuration())
	sched.Observer = m

	if !cfg.Continuous && cfg.Cron == "" {
		sched.RunOnce()
		return
	}

	// stop ends scheduling; cycleCtx aborts in-flight fetches on a second signal.
	stop, stopCancel := context.WithCancel(context.Background())
	defer stopCancel()
	cycleCtx, cycleCancel := context.WithCancel(context.Background())
	defer cycleCancel()
	sched.CycleContext = cycleCtx

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		log.Println("[INFO] shutdown signal received, finishing current cycle (signal again to abort)")
		stopCancel()
		<-sigCh
		log.Println("[WARN] second signal, aborting in-flight fetches")
		cycleCancel()
	}()

	if bot := cfg.CommandBot(); bot != nil {
		go bot.Poll(stop, sched.HandleCommand)
	}

	if cfg.Cron != "" {
		schedule, err := config.ParseSchedule(cfg.Cron)
		if err != nil {
			log.Fatalf("[FATAL] cron: %v", err)
		}
		err = sched.RunCron(stop, schedule, cfg.RunOnStart)
		if err != nil {
			log.Printf("[ERROR] scheduler: %v", err)
		}
	} else if err := sched.RunContinuous(stop); err != nil {
		log.Printf("[ERROR] scheduler: %v", err)
	}
	log.Printf("[INFO] RSI screener stopped after %d cycle(s)", sched.Cycles())
}
