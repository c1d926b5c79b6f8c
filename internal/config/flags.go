package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// listFlag collects repeated --tickers values.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// Parse builds the configuration from command line args: defaults, then the
// config file, then .env and environment, then the flags actually given.
// Positional arguments are extra tickers.
func Parse(args []string, stderr io.Writer) (*Config, error) {
	def := Default()
	fs := flag.NewFlagSet("rsi-screener", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		path         = fs.String("config", "", "path to YAML config file (default $CONFIG_PATH or "+DefaultPath+")")
		file         = fs.String("file", "", "path to a ticker list file")
		tickers      listFlag
		overbought   = fs.Float64("overbought", def.Overbought, "RSI overbought threshold")
		oversold     = fs.Float64("oversold", def.Oversold, "RSI oversold threshold")
		period       = fs.String("period", def.Period, "history to fetch (e.g. 90d, 6mo, 1y)")
		dataInterval = fs.String("data-interval", def.DataInterval, "bar interval (e.g. 1d, 1h)")
		continuous   = fs.Bool("continuous", def.Continuous, "run continuously")
		interval     = fs.Int("interval", def.Interval, "seconds between checks in continuous mode")
		limit        = fs.Int("limit", def.Limit, "screen only the first N tickers (0 = all)")
		rsiLength    = fs.Int("rsi-length", def.RSILength, "RSI lookback")
		workers      = fs.Int("workers", def.Workers, "concurrent fetches per cycle")
		fetchTimeout = fs.Duration("fetch-timeout", def.FetchTimeout, "per-ticker fetch timeout")
		cronSpec     = fs.String("cron", def.Cron, "cron expression schedule (overrides --interval)")
		source       = fs.String("source", def.Source, "price source: yahoo or rest")
		metricsAddr  = fs.String("metrics-addr", def.MetricsAddr, "serve Prometheus metrics on this address")
		ledger       = fs.String("ledger", def.LedgerPath, "SQLite alert ledger path")
	)
	fs.Var(&tickers, "tickers", "tickers to scan, comma or space separated; repeatable")

	// flag stops at the first positional, so "--tickers NVDA MSFT --continuous"
	// would leave --continuous unparsed. Collect positionals and resume.
	// Everything after a "--" terminator is positional.
	var tail []string
	for i, a := range args {
		if a == "--" {
			args, tail = args[:i], args[i+1:]
			break
		}
	}
	var positional []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		rest = fs.Args()
		i := 0
		for i < len(rest) && !strings.HasPrefix(rest[i], "-") {
			i++
		}
		positional = append(positional, rest[:i]...)
		if i == len(rest) {
			break
		}
		if rest[i] == "-" {
			return nil, fmt.Errorf("%w: unexpected argument %q", ErrInvalidConfig, rest[i])
		}
		rest = rest[i:]
	}
	positional = append(positional, tail...)

	cfgPath := DefaultPath
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	if *path != "" {
		cfgPath = *path
	}
	cfg, err := Load(cfgPath)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "file":
			cfg.TickersFile = *file
		case "tickers":
			cfg.Tickers = append(cfg.Tickers, tickers...)
		case "overbought":
			cfg.Overbought = *overbought
		case "oversold":
			cfg.Oversold = *oversold
		case "period":
			cfg.Period = *period
		case "data-interval":
			cfg.DataInterval = *dataInterval
		case "continuous":
			cfg.Continuous = *continuous
		case "interval":
			cfg.Interval = *interval
		case "limit":
			cfg.Limit = *limit
		case "rsi-length":
			cfg.RSILength = *rsiLength
		case "workers":
			cfg.Workers = *workers
		case "fetch-timeout":
			cfg.FetchTimeout = *fetchTimeout
		case "cron":
			cfg.Cron = *cronSpec
		case "source":
			cfg.Source = *source
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "ledger":
			cfg.LedgerPath = *ledger
		}
	})
	cfg.Tickers = append(cfg.Tickers, positional...)
	return cfg, nil
}

// Summary is a one-line description of the effective run settings.
func (c *Config) Summary() string {
	mode := "once"
	switch {
	case c.Cron != "":
		mode = "cron " + c.Cron
	case c.Continuous:
		mode = "every " + (time.Duration(c.Interval) * time.Second).String()
	}
	return fmt.Sprintf("source=%s period=%s interval=%s rsi=%d overbought=%.0f oversold=%.0f mode=%s",
		c.Source, c.Period, c.DataInterval, c.RSILength, c.Overbought, c.Oversold, mode)
}
