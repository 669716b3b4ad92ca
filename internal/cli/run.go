package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/icewatch/ticketwatch/internal/config"
	"github.com/icewatch/ticketwatch/internal/logger"
	"github.com/icewatch/ticketwatch/internal/server"
	"github.com/icewatch/ticketwatch/internal/telegram"
)

var flagOnce bool

// task is one long-running component of the service. A failing critical
// task stops the others.
type task struct {
	name     string
	run      func(context.Context) error
	critical bool
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the watcher, the bot and the HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runService,
	}
	cmd.Flags().BoolVar(&flagOnce, "once", false, "Perform a single check cycle and exit")
	return cmd
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("Starting ticketwatch", logger.Fields{
		"version":  Version,
		"url":      cfg.TicketURL,
		"mirrors":  len(cfg.MirrorURLs),
		"backend":  cfg.SubscriberBackend,
		"bot_mode": cfg.BotMode,
		"dry_run":  cfg.DryRun,
	})

	if flagOnce {
		cycle, err := a.watcher.RunOnce(ctx)
		if err != nil {
			return err
		}
		if cycle.Changes != nil && !cycle.Changes.Empty() {
			return &exitError{code: ExitChanges}
		}
		return nil
	}

	return a.serve(ctx)
}

// serve runs the watcher loop, the HTTP server and the bot update source
// until ctx is cancelled or one of them fails.
func (a *app) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var webhook *telegram.Webhook
	var webhookHandler http.Handler
	if a.client != nil && a.cfg.BotMode == config.ModeWebhook {
		webhook = telegram.NewWebhook(a.client, a.cfg.WebhookURL, a.cfg.WebhookSecret)
		webhookHandler = webhook.Handler()
	}

	srv, err := server.New(server.Options{
		Addr:        a.cfg.HTTPAddr,
		Version:     Version,
		Status:      a.watcher,
		Subscribers: a.registry,
		Webhook:     webhookHandler,
		Debug:       a.cfg.Level() == logger.LevelDebug,
	})
	if err != nil {
		return err
	}

	// A stopped bot update source is only logged; the watcher and the
	// server keep running.
	tasks := []task{
		{name: "watcher", run: a.watcher.Run, critical: true},
		{name: "server", run: srv.Run, critical: true},
	}
	switch {
	case webhook != nil:
		tasks = append(tasks, task{name: "webhook", run: webhook.Run})
	case a.client != nil:
		tasks = append(tasks, task{name: "poller", run: telegram.NewPoller(a.client).Run})
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(tasks))
	for _, t := range tasks {
		wg.Add(1)
		go func(t task) {
			defer wg.Done()
			err := t.run(ctx)
			if err == nil {
				return
			}
			if !t.critical {
				logger.Error("Bot update source stopped", logger.Fields{"task": t.name}, err)
				return
			}
			errCh <- fmt.Errorf("%s: %w", t.name, err)
			cancel()
		}(t)
	}

	wg.Wait()
	close(errCh)

	if err, ok := <-errCh; ok {
		return err
	}
	logger.Info("Shutdown complete", nil)
	return nil
}
