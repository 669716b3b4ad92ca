package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/icewatch/ticketwatch/internal/match"
	"github.com/icewatch/ticketwatch/internal/notifier"
	"github.com/icewatch/ticketwatch/internal/storage"
	"github.com/icewatch/ticketwatch/internal/watcher"
)

var (
	flagFormat  string
	flagSort    string
	flagSave    bool
	flagVerbose bool
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the ticket page once and report changes",
		Long: `Fetches the ticket page, compares it with the stored snapshot and
prints the added and removed matches. Nobody is notified. The snapshot is
only updated with --save. Exits with code 2 when something changed.`,
		Args: cobra.NoArgs,
		RunE: runCheck,
	}

	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&flagSort, "sort", "", "Sort matches by: date or title (default: page order)")
	cmd.Flags().BoolVar(&flagSave, "save", false, "Store the fetched matches as the new snapshot")
	cmd.Flags().BoolVar(&flagVerbose, "verbose", false, "Show keys, start times and links")
	return cmd
}

// readOnlyStore loads the stored snapshot but discards saves
type readOnlyStore struct {
	*storage.Storage
}

func (readOnlyStore) SaveSnapshot(*match.Snapshot) error { return nil }

// silentDispatcher records nothing and sends nothing
type silentDispatcher struct{}

func (silentDispatcher) Dispatch(context.Context, *match.Changes) (*notifier.Report, error) {
	return &notifier.Report{}, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	format := OutputFormat(strings.ToLower(flagFormat))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)
	}
	order := SortOrder(strings.ToLower(flagSort))
	if order != "" && order != SortByDate && order != SortByTitle {
		return fmt.Errorf("invalid sort: %s (must be 'date' or 'title')", flagSort)
	}

	// check never sends anything, so no bot token is needed
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	var snapshots watcher.SnapshotStore = readOnlyStore{store}
	if flagSave {
		snapshots = store
	}
	w := watcher.New(watcher.Config{
		Interval:        cfg.Interval,
		AnnounceInitial: true,
	}, newScraper(cfg), snapshots, silentDispatcher{}, nil)

	cycle, err := w.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("checking page: %w", err)
	}

	result := &OutputResult{
		CheckedAt: time.Now().UTC(),
		Source:    cycle.Source,
		Baseline:  cycle.Baseline,
		OnSale:    cycle.Matches,
		Skipped:   cycle.Skipped,
		Added:     []*match.Match{},
		Removed:   []*match.Match{},
	}
	if cycle.Changes != nil {
		result.Added = cycle.Changes.Added
		result.Removed = cycle.Changes.Removed
	}
	sortMatches(result.Added, order)
	sortMatches(result.Removed, order)

	if err := WriteOutput(cmd.OutOrStdout(), result, format, flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if len(result.Added)+len(result.Removed) > 0 {
		return &exitError{code: ExitChanges}
	}
	return nil
}
