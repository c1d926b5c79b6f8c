package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"RSIScreener/internal/collector"
	"RSIScreener/internal/model"
	"RSIScreener/internal/notifier"
)

// DefaultPath is read when neither --config nor CONFIG_PATH is given.
const DefaultPath = "configs/config.yaml"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all application configuration.
type Config struct {
	TickersFile string   `yaml:"tickers_file"`
	Tickers     []string `yaml:"tickers"`
	Limit       int      `yaml:"limit"`

	Continuous bool   `yaml:"continuous"`
	Interval   int    `yaml:"interval"` // seconds between continuous cycles
	Cron       string `yaml:"cron"`
	RunOnStart bool   `yaml:"run_on_start"`

	Period       string        `yaml:"period"`
	DataInterval string        `yaml:"data_interval"`
	RSILength    int           `yaml:"rsi_length"`
	Workers      int           `yaml:"workers"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	model.Thresholds `yaml:",inline"`

	Source        string            `yaml:"source"`
	RESTBaseURL   string            `yaml:"rest_base_url"`
	RESTAPIKey    string            `yaml:"rest_api_key"`
	Proxy         string            `yaml:"proxy"`
	SymbolAliases map[string]string `yaml:"symbol_aliases"`

	MetricsAddr string `yaml:"metrics_addr"`
	LedgerPath  string `yaml:"ledger_path"`

	Notify Notify `yaml:"notify"`
}

// Notify holds notification channel credentials. Channels without
// credentials are skipped.
type Notify struct {
	WebhookURL   string   `yaml:"webhook_url"`
	Email        Email    `yaml:"email"`
	SMSGatewayTo []string `yaml:"sms_gateway_to"`
	Telegram     struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
		Commands bool   `yaml:"commands"` // answer /status, /report, /alerts
	} `yaml:"telegram"`
	Retries  int           `yaml:"retries"`
	Cooldown time.Duration `yaml:"cooldown"`
}

// Email holds the SMTP settings shared by the email and SMS gateway senders.
type Email struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	UseTLS   bool     `yaml:"use_tls"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Interval:     300,
		RunOnStart:   true,
		Period:       "90d",
		DataInterval: "1d",
		RSILength:    14,
		Workers:      4,
		FetchTimeout: 30 * time.Second,
		Thresholds:   model.DefaultThresholds(),
		Source:       "yahoo",
	}
	cfg.Notify.Email.Port = 587
	cfg.Notify.Email.UseTLS = true
	cfg.Notify.Retries = 2
	return cfg
}

// Load reads config from a YAML file on top of the defaults, then applies
// .env and environment variable overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	_ = godotenv.Load()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setStr(&c.TickersFile, "TICKERS_FILE")
	setStr(&c.Cron, "CRON")
	setBool(&c.RunOnStart, "RUN_ON_START")
	setStr(&c.Source, "DATA_SOURCE")
	setStr(&c.RESTBaseURL, "REST_BASE_URL")
	setStr(&c.RESTAPIKey, "REST_API_KEY")
	setStr(&c.Proxy, "HTTPS_PROXY")
	setStr(&c.MetricsAddr, "METRICS_ADDR")
	setStr(&c.LedgerPath, "SQLITE_PATH")
	setStr(&c.LedgerPath, "LEDGER_PATH")

	setStr(&c.Notify.WebhookURL, "SLACK_WEBHOOK")
	setStr(&c.Notify.WebhookURL, "RSI_WEBHOOK_URL")
	setStr(&c.Notify.Email.Host, "EMAIL_HOST")
	setInt(&c.Notify.Email.Port, "EMAIL_PORT")
	setBool(&c.Notify.Email.UseTLS, "EMAIL_USE_TLS")
	setStr(&c.Notify.Email.User, "EMAIL_USER")
	setStr(&c.Notify.Email.Password, "EMAIL_PASSWORD")
	setStr(&c.Notify.Email.From, "EMAIL_FROM")
	setList(&c.Notify.Email.To, "EMAIL_TO")
	setList(&c.Notify.SMSGatewayTo, "SMS_GATEWAY_TO")
	setStr(&c.Notify.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setStr(&c.Notify.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setBool(&c.Notify.Telegram.Commands, "TELEGRAM_COMMANDS")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[WARN] ignoring %s=%q: not an integer", key, v)
		return
	}
	*dst = n
}

func setBool(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[WARN] ignoring %s=%q: not a boolean", key, v)
		return
	}
	*dst = b
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

// cronParser accepts standard five-field expressions, an optional leading
// seconds field and descriptors such as @hourly or @every 10m.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a cron expression.
func ParseSchedule(spec string) (cron.Schedule, error) {
	return cronParser.Parse(spec)
}

// Validate checks the configuration. Every error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Interval < 1 {
		return invalid("interval must be at least 1 second, got %d", c.Interval)
	}
	if c.RSILength < 1 {
		return invalid("rsi_length must be at least 1, got %d", c.RSILength)
	}
	if c.Workers < 1 {
		return invalid("workers must be at least 1, got %d", c.Workers)
	}
	if c.FetchTimeout <= 0 {
		return invalid("fetch_timeout must be positive")
	}
	if c.Limit < 0 {
		return invalid("limit must not be negative")
	}
	if c.Period == "" || c.DataInterval == "" {
		return invalid("period and data_interval are required")
	}
	if c.Cron != "" {
		if _, err := ParseSchedule(c.Cron); err != nil {
			return invalid("cron %q: %v", c.Cron, err)
		}
	}
	switch c.Source {
	case "yahoo":
	case "rest":
		if c.RESTBaseURL == "" {
			return invalid("rest_base_url is required for source rest")
		}
	default:
		return invalid("unknown source %q", c.Source)
	}
	if c.Notify.Retries < 0 {
		return invalid("notify.retries must not be negative")
	}
	if c.Notify.Cooldown < 0 {
		return invalid("notify.cooldown must not be negative")
	}
	if c.TickersFile == "" && len(c.Tickers) == 0 {
		return invalid("no tickers given: use --file, --tickers or tickers in the config file")
	}
	return nil
}

// TickerList merges the ticker file and the inline tickers, deduplicated,
// and applies the limit.
func (c *Config) TickerList() ([]string, error) {
	var fromFile []string
	if c.TickersFile != "" {
		var err error
		fromFile, err = collector.ParseTickerFile(c.TickersFile)
		if err != nil {
			return nil, err
		}
	}
	inline := make([]string, 0, len(c.Tickers))
	for _, t := range c.Tickers {
		inline = append(inline, collector.SplitTickers(t)...)
	}
	tickers := collector.MergeTickers(fromFile, inline)
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: ticker list is empty", ErrInvalidConfig)
	}
	for _, t := range tickers {
		if !collector.ValidSymbol(t) {
			return nil, fmt.Errorf("%w: %q is not a ticker symbol (misplaced flag?)", ErrInvalidConfig, t)
		}
	}
	return collector.LimitTickers(tickers, c.Limit), nil
}

// ScreenerOptions returns the per-cycle options.
func (c *Config) ScreenerOptions() collector.Options {
	return collector.Options{
		Period:       c.Period,
		Interval:     c.DataInterval,
		Lookback:     c.RSILength,
		Thresholds:   c.Thresholds,
		Workers:      c.Workers,
		FetchTimeout: c.FetchTimeout,
	}
}

// IntervalDuration returns the continuous-mode pause.
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// Fetcher builds the configured price provider.
func (c *Config) Fetcher() collector.Fetcher {
	if c.Source == "rest" {
		return collector.NewRESTFetcher(c.RESTBaseURL, c.RESTAPIKey, c.Proxy, c.SymbolAliases)
	}
	return collector.NewYahooFetcher(c.Proxy, c.SymbolAliases)
}

// SMTP returns the mail server settings for the notifier.
func (n Notify) SMTP() notifier.SMTPConfig {
	return notifier.SMTPConfig{
		Host:     n.Email.Host,
		Port:     n.Email.Port,
		UseTLS:   n.Email.UseTLS,
		User:     n.Email.User,
		Password: n.Email.Password,
		From:     n.Email.From,
	}
}

// Senders builds a sender for every channel that has credentials.
func (c *Config) Senders() []notifier.Sender {
	var senders []notifier.Sender
	n := c.Notify
	if n.WebhookURL != "" {
		senders = append(senders, notifier.NewWebhookSender(n.WebhookURL))
	}
	smtp := n.SMTP()
	if smtp.Complete() && len(n.Email.To) > 0 {
		senders = append(senders, notifier.NewEmailSender(smtp, n.Email.To))
	}
	if smtp.Complete() && len(n.SMSGatewayTo) > 0 {
		senders = append(senders, notifier.NewSMSGatewaySender(smtp, n.SMSGatewayTo))
	}
	if n.Telegram.BotToken != "" && n.Telegram.ChatID != "" {
		senders = append(senders, notifier.NewTelegramSender(n.Telegram.BotToken, n.Telegram.ChatID, c.Proxy))
	}
	return senders
}

// CommandBot returns the Telegram sender used to answer chat commands, or nil
// when commands are disabled or credentials are missing.
func (c *Config) CommandBot() *notifier.TelegramSender {
	t := c.Notify.Telegram
	if !t.Commands || t.BotToken == "" || t.ChatID == "" {
		return nil
	}
	return notifier.NewTelegramSender(t.BotToken, t.ChatID, c.Proxy)
}
