package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/icewatch/ticketwatch/internal/logger"
	"github.com/icewatch/ticketwatch/internal/match"
	"github.com/icewatch/ticketwatch/internal/notifier"
	"github.com/icewatch/ticketwatch/internal/scraper"
	"github.com/icewatch/ticketwatch/internal/subscribers"
)

// Bot update modes
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config holds every tunable of the service
type Config struct {
	TicketURL    string        `yaml:"ticket_url" env:"TICKET_URL"`
	MirrorURLs   []string      `yaml:"mirror_urls" env:"MIRROR_URLS" env-separator:","`
	Headless     bool          `yaml:"headless" env:"HEADLESS" env-default:"false"`
	WaitSelector string        `yaml:"wait_selector" env:"WAIT_SELECTOR"`
	Interval     time.Duration `yaml:"check_interval" env:"CHECK_INTERVAL" env-default:"5m"`
	Attempts     int           `yaml:"fetch_attempts" env:"FETCH_ATTEMPTS" env-default:"3"`
	Backoff      time.Duration `yaml:"fetch_backoff" env:"FETCH_BACKOFF" env-default:"5s"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT" env-default:"30s"`
	UserAgent    string        `yaml:"user_agent" env:"USER_AGENT"`

	BotToken      string `yaml:"bot_token" env:"BOT_TOKEN"`
	AdminChatID   int64  `yaml:"admin_chat_id" env:"ADMIN_CHAT_ID" env-default:"0"`
	BotMode       string `yaml:"bot_mode" env:"BOT_MODE" env-default:"polling"`
	WebhookURL    string `yaml:"webhook_url" env:"WEBHOOK_URL"`
	WebhookSecret string `yaml:"webhook_secret" env:"WEBHOOK_SECRET"`
	BotAPIURL     string `yaml:"bot_api_url" env:"BOT_API_URL"` // self-hosted Bot API server; empty for api.telegram.org
	HTTPAddr      string `yaml:"http_addr" env:"HTTP_ADDR" env-default:":8080"`

	DataDir           string `yaml:"data_dir" env:"DATA_DIR" env-default:"./data"`
	SubscriberBackend string `yaml:"subscriber_backend" env:"SUBSCRIBER_BACKEND" env-default:"file"`
	RedisAddr         string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword     string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB           int    `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
	EncryptionKey     string `yaml:"encryption_key" env:"ENCRYPTION_KEY"`

	SendInterval     time.Duration `yaml:"send_interval" env:"SEND_INTERVAL" env-default:"100ms"`
	SeasonStartMonth int           `yaml:"season_start_month" env:"SEASON_START_MONTH" env-default:"8"`
	PastTolerance    time.Duration `yaml:"past_tolerance" env:"PAST_TOLERANCE" env-default:"720h"`
	Timezone         string        `yaml:"timezone" env:"TIMEZONE" env-default:"Europe/Moscow"`
	AnnounceInitial  bool          `yaml:"announce_initial" env:"ANNOUNCE_INITIAL" env-default:"false"`
	AlertAfter       int           `yaml:"admin_alert_after" env:"ADMIN_ALERT_AFTER" env-default:"3"`
	LogLevel         string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	DryRun           bool          `yaml:"dry_run" env:"DRY_RUN" env-default:"false"`

	Twitter   Twitter           `yaml:"twitter"`
	Selectors scraper.Selectors `yaml:"selectors"`
}

// Twitter holds the optional secondary announcement channel
type Twitter struct {
	APIKey       string `yaml:"api_key" env:"TWITTER_API_KEY"`
	APISecret    string `yaml:"api_secret" env:"TWITTER_API_SECRET"`
	AccessToken  string `yaml:"access_token" env:"TWITTER_ACCESS_TOKEN"`
	AccessSecret string `yaml:"access_secret" env:"TWITTER_ACCESS_SECRET"`
}

// Load reads .env (when present), then the YAML file at path (when set),
// then the environment.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	return &cfg, nil
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	logger.Debug("Loaded environment file", logger.Fields{"path": path})
	return nil
}

// Validate checks the settings needed to run. The bot token is only
// required outside dry-run mode.
func (c *Config) Validate() error {
	var errs []error

	if c.TicketURL == "" {
		errs = append(errs, errors.New("ticket_url is required"))
	} else if err := checkURL(c.TicketURL); err != nil {
		errs = append(errs, fmt.Errorf("ticket_url: %w", err))
	}
	for _, m := range c.MirrorURLs {
		if err := checkURL(m); err != nil {
			errs = append(errs, fmt.Errorf("mirror_urls: %w", err))
		}
	}
	if c.BotToken == "" && !c.DryRun {
		errs = append(errs, errors.New("bot_token is required unless dry_run is set"))
	}

	switch c.BotMode {
	case ModePolling:
	case ModeWebhook:
		if c.WebhookURL == "" {
			errs = append(errs, errors.New("webhook_url is required in webhook mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("bot_mode must be %q or %q, got %q", ModePolling, ModeWebhook, c.BotMode))
	}

	switch c.SubscriberBackend {
	case subscribers.BackendFile, subscribers.BackendSQLite, subscribers.BackendRedis, subscribers.BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown subscriber_backend %q", c.SubscriberBackend))
	}

	if c.SeasonStartMonth < 1 || c.SeasonStartMonth > 12 {
		errs = append(errs, fmt.Errorf("season_start_month must be 1-12, got %d", c.SeasonStartMonth))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("check_interval must be positive, got %s", c.Interval))
	}
	if c.Attempts < 1 {
		errs = append(errs, fmt.Errorf("fetch_attempts must be at least 1, got %d", c.Attempts))
	}
	if c.AlertAfter < 1 {
		errs = append(errs, fmt.Errorf("admin_alert_after must be at least 1, got %d", c.AlertAfter))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http(s) URL", raw)
	}
	return nil
}

// Level returns the parsed log level, INFO when invalid
func (c *Config) Level() logger.Level {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return logger.LevelInfo
	}
	return level
}

// Location returns the configured time zone
func (c *Config) Location() *time.Location {
	return match.LoadLocation(c.Timezone)
}

// Normalizer builds the date normalizer for the configured season
func (c *Config) Normalizer() *match.Normalizer {
	n := match.NewNormalizer()
	n.SeasonStartMonth = time.Month(c.SeasonStartMonth)
	n.PastTolerance = c.PastTolerance
	n.Location = c.Location()
	return n
}

// Subscribers returns the registry options
func (c *Config) Subscribers() subscribers.Options {
	return subscribers.Options{
		Backend:       c.SubscriberBackend,
		DataDir:       c.DataDir,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		EncryptionKey: c.EncryptionKey,
	}
}

// TwitterCredentials returns the Twitter keys
func (c *Config) TwitterCredentials() notifier.TwitterCredentials {
	return notifier.TwitterCredentials{
		APIKey:       c.Twitter.APIKey,
		APISecret:    c.Twitter.APISecret,
		AccessToken:  c.Twitter.AccessToken,
		AccessSecret: c.Twitter.AccessSecret,
	}
}

// Sources lists the primary page and its mirrors, primary first
func (c *Config) Sources() []string {
	out := make([]string, 0, 1+len(c.MirrorURLs))
	out = append(out, c.TicketURL)
	for _, m := range c.MirrorURLs {
		if m = strings.TrimSpace(m); m != "" && m != c.TicketURL {
			out = append(out, m)
		}
	}
	return out
}
