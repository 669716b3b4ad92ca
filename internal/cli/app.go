package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/icewatch/ticketwatch/internal/commands"
	"github.com/icewatch/ticketwatch/internal/config"
	"github.com/icewatch/ticketwatch/internal/logger"
	"github.com/icewatch/ticketwatch/internal/notifier"
	"github.com/icewatch/ticketwatch/internal/scraper"
	"github.com/icewatch/ticketwatch/internal/storage"
	"github.com/icewatch/ticketwatch/internal/subscribers"
	"github.com/icewatch/ticketwatch/internal/telegram"
	"github.com/icewatch/ticketwatch/internal/watcher"
)

// app holds the wired components of a running service
type app struct {
	cfg      *config.Config
	store    *storage.Storage
	registry subscribers.Registry
	closeFn  func() error

	client   *telegram.Client // nil in dry-run mode
	sender   notifier.Sender
	notifier *notifier.Notifier
	watcher  *watcher.Watcher
	commands *commands.Handler
}

// newScraper builds the fetch chain: the primary page, then mirrors, then
// a headless browser when enabled. The whole chain is retried.
func newScraper(cfg *config.Config) *scraper.Scraper {
	sources := cfg.Sources()
	chain := make(scraper.Chain, 0, len(sources)+1)
	for _, u := range sources {
		chain = append(chain, scraper.NewHTTPFetcher(u, cfg.FetchTimeout, cfg.UserAgent))
	}
	if cfg.Headless {
		chain = append(chain, scraper.NewBrowserFetcher(cfg.TicketURL, cfg.FetchTimeout, cfg.UserAgent, cfg.WaitSelector))
	}

	retrying := scraper.NewRetrying(chain, cfg.Attempts, cfg.Backoff)
	retrying.OnRetry = func(err error, wait time.Duration) {
		logger.IncrCounter("fetch.retries")
		logger.Warn("Fetch failed, retrying", logger.Fields{
			"error": err.Error(),
			"wait":  wait.String(),
		})
	}

	return scraper.New(retrying, scraper.NewExtractor(cfg.Selectors, cfg.Normalizer()))
}

// newApp wires every component. out receives dry-run output.
func newApp(ctx context.Context, cfg *config.Config, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, closeFn: func() error { return nil }}

	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	a.store = store

	subOpts := cfg.Subscribers()
	subOpts.DataDir = store.DataDir()
	registry, closeFn, err := subscribers.Open(ctx, subOpts)
	if err != nil {
		return nil, fmt.Errorf("opening subscriber registry: %w", err)
	}
	a.registry = registry
	a.closeFn = closeFn

	var announcers []notifier.Announcer
	if cfg.DryRun {
		a.sender = notifier.NewDryRunSender(out)
		if cfg.TwitterCredentials().Complete() {
			announcers = append(announcers, notifier.NewDryRunAnnouncer(out))
		}
	} else {
		client, err := telegram.NewClient(cfg.BotToken, telegram.Options{
			ServerURL:     cfg.BotAPIURL,
			WebhookSecret: cfg.WebhookSecret,
			Handler: func(ctx context.Context, msg telegram.Incoming) {
				a.commands.Handle(ctx, msg)
			},
			OnError: func(err error) {
				logger.Warn("Telegram update error", logger.Fields{"error": err.Error()})
			},
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.client = client
		a.sender = client

		if creds := cfg.TwitterCredentials(); creds.Complete() {
			tw, err := notifier.NewTwitterAnnouncer(creds)
			if err != nil {
				a.Close()
				return nil, err
			}
			announcers = append(announcers, tw)
		}
	}

	a.notifier = notifier.New(a.sender, registry, cfg.SendInterval, announcers...)
	a.watcher = watcher.New(watcher.Config{
		Interval:        cfg.Interval,
		AnnounceInitial: cfg.AnnounceInitial,
		AlertAfter:      cfg.AlertAfter,
		AdminChatID:     cfg.AdminChatID,
	}, newScraper(cfg), store, a.notifier, a.sender)
	a.commands = commands.New(registry, a.watcher, a.sender, cfg.AdminChatID, cfg.Location())

	return a, nil
}

// Close releases the registry backend
func (a *app) Close() {
	if err := a.closeFn(); err != nil {
		logger.Warn("Failed to close subscriber registry", logger.Fields{"error": err.Error()})
	}
}
