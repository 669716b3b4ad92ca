package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/icewatch/ticketwatch/internal/logger"
	"github.com/icewatch/ticketwatch/internal/match"
	"github.com/icewatch/ticketwatch/internal/notifier"
	"github.com/icewatch/ticketwatch/internal/scraper"
	"github.com/icewatch/ticketwatch/internal/telegram"
)

const (
	DefaultInterval   = 5 * time.Minute
	DefaultAlertAfter = 3
)

// PageSource fetches and parses the ticket page
type PageSource interface {
	Fetch(ctx context.Context) (*scraper.Page, error)
	Extract(page *scraper.Page) (*scraper.Result, error)
}

// SnapshotStore persists the last known match list
type SnapshotStore interface {
	LoadSnapshot() (*match.Snapshot, error)
	SaveSnapshot(snapshot *match.Snapshot) error
}

// Dispatcher delivers change notifications
type Dispatcher interface {
	Dispatch(ctx context.Context, changes *match.Changes) (*notifier.Report, error)
}

// Config controls the cycle
type Config struct {
	Interval time.Duration
	// AnnounceInitial notifies subscribers about every match found on the
	// very first run instead of silently recording a baseline.
	AnnounceInitial bool
	// AlertAfter consecutive failed cycles trigger one admin alert
	AlertAfter  int
	AdminChatID int64
}

// Cycle describes the outcome of one check
type Cycle struct {
	ID       string
	Changes  *match.Changes
	Report   *notifier.Report
	Baseline bool // first snapshot recorded
	Matches  int
	Skipped  int // listings dropped for missing fragments
	Source   string
	Duration time.Duration
}

// Watcher owns the check loop and the in-memory copy of the snapshot
type Watcher struct {
	cfg        Config
	source     PageSource
	store      SnapshotStore
	dispatcher Dispatcher
	admin      notifier.Sender
	now        func() time.Time

	mu       sync.RWMutex
	status   Status
	snapshot *match.Snapshot
	loaded   bool
}

// New creates a Watcher. admin may be nil to disable diagnostics messages.
func New(cfg Config, source PageSource, store SnapshotStore, dispatcher Dispatcher, admin notifier.Sender) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.AlertAfter <= 0 {
		cfg.AlertAfter = DefaultAlertAfter
	}
	w := &Watcher{
		cfg:        cfg,
		source:     source,
		store:      store,
		dispatcher: dispatcher,
		admin:      admin,
		now:        time.Now,
		snapshot:   match.NewSnapshot(),
	}
	w.status = Status{
		State:          StateIdle,
		StartedAt:      w.now(),
		AlertThreshold: cfg.AlertAfter,
	}
	return w
}

// Status returns a copy of the current status
func (w *Watcher) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// Matches returns the current snapshot's matches
func (w *Watcher) Matches() []*match.Match {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*match.Match, len(w.snapshot.Matches))
	copy(out, w.snapshot.Matches)
	return out
}

// Snapshot returns a copy of the current snapshot
func (w *Watcher) Snapshot() *match.Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return match.CreateSnapshot(w.snapshot.Matches, w.snapshot.UpdatedAt)
}

func (w *Watcher) setState(s State) {
	w.mu.Lock()
	w.status.State = s
	w.mu.Unlock()
}

// Load reads the persisted snapshot. Run and RunOnce call it on first use.
// An unreadable snapshot is logged and replaced by an empty baseline; a
// store that also rejects writes then fails every cycle, which reaches the
// admin alert.
func (w *Watcher) Load() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.loaded {
		return
	}

	snap, err := w.store.LoadSnapshot()
	if err != nil {
		logger.Warn("Cannot read snapshot, starting from an empty baseline", logger.Fields{
			"error": err.Error(),
		})
		logger.IncrCounter("storage.corrupt")
		w.status.LastError = fmt.Sprintf("loading snapshot: %v", err)
		snap = match.NewSnapshot()
	}
	w.snapshot = snap
	w.status.Matches = snap.Len()
	w.loaded = true
}

// Run checks the page every interval until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	w.Load()

	logger.Info("Watcher started", logger.Fields{
		"interval": w.cfg.Interval.String(),
		"matches":  w.Status().Matches,
	})

	for {
		// Failures are logged and recorded in the status by RunOnce
		_, _ = w.RunOnce(ctx)

		w.setState(StateSleeping)
		timer := time.NewTimer(w.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.setState(StateIdle)
			logger.Info("Watcher stopped", nil)
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce performs a single check cycle
func (w *Watcher) RunOnce(ctx context.Context) (*Cycle, error) {
	w.Load()

	start := w.now()
	cycle := &Cycle{ID: uuid.NewString()}
	log := logger.Default().With(logger.Fields{"cycle": cycle.ID})

	w.mu.Lock()
	w.status.LastCycleID = cycle.ID
	w.status.LastCheck = start
	w.status.Cycles++
	w.mu.Unlock()
	logger.IncrCounter("cycles.total")

	err := w.cycle(ctx, cycle, log)
	cycle.Duration = w.now().Sub(start)
	logger.RecordTiming("cycle.duration", cycle.Duration)

	if err != nil {
		if ctx.Err() != nil {
			w.setState(StateIdle)
			return cycle, err
		}
		w.recordFailure(ctx, cycle, err, log)
		return cycle, err
	}

	w.recordSuccess(ctx, cycle, log)
	return cycle, nil
}

func (w *Watcher) cycle(ctx context.Context, cycle *Cycle, log *logger.Logger) error {
	w.setState(StateFetching)
	page, err := w.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetching page: %w", err)
	}
	cycle.Source = page.Source

	w.setState(StateExtracting)
	result, err := w.source.Extract(page)
	if err != nil {
		return fmt.Errorf("extracting matches: %w", err)
	}
	cycle.Matches = len(result.Matches)
	cycle.Skipped = result.Skipped
	if result.Skipped > 0 {
		logger.AddCounter("extract.skipped", int64(result.Skipped))
		log.Warn("Skipped incomplete listings", logger.Fields{
			"skipped": result.Skipped,
			"found":   result.Found,
		})
	}

	w.setState(StateDiffing)
	w.mu.RLock()
	prev := w.snapshot
	w.mu.RUnlock()

	// An empty page the site does not confirm as empty is usually a layout
	// change or an anti-bot stub. Wiping the snapshot would re-announce every
	// match once the page comes back.
	if result.Ambiguous() && (prev.Len() > 0 || prev.IsBaseline()) {
		return scraper.ErrNoMatches
	}

	changes := match.DiffSnapshot(prev, result.Matches)
	cycle.Changes = changes
	cycle.Baseline = prev.IsBaseline()

	if cycle.Baseline && !w.cfg.AnnounceInitial {
		log.Info("Recording baseline snapshot", logger.Fields{"matches": len(result.Matches)})
		return w.persist(prev, result.Matches, log)
	}

	if changes.Empty() {
		log.Debug("No changes", logger.Fields{"matches": len(result.Matches)})
		return nil
	}

	log.Info("Detected changes", logger.Fields{
		"added":   len(changes.Added),
		"removed": len(changes.Removed),
	})

	w.setState(StateNotifying)
	report, err := w.dispatcher.Dispatch(ctx, changes)
	cycle.Report = report
	if err != nil {
		return fmt.Errorf("notifying subscribers: %w", err)
	}

	return w.persist(prev, result.Matches, log)
}

// persist saves the new match list, carrying FirstSeen over from prev
func (w *Watcher) persist(prev *match.Snapshot, current []*match.Match, log *logger.Logger) error {
	w.setState(StatePersisting)

	firstSeen := make(map[string]time.Time, prev.Len())
	for _, m := range prev.Matches {
		firstSeen[m.IdentityKey()] = m.FirstSeen
	}
	for _, m := range current {
		if t, ok := firstSeen[m.IdentityKey()]; ok && !t.IsZero() {
			m.FirstSeen = t
		}
	}

	snap := match.CreateSnapshot(current, w.now().UTC())
	if err := w.store.SaveSnapshot(snap); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	w.mu.Lock()
	w.snapshot = snap
	w.status.Matches = snap.Len()
	w.status.LastChange = snap.UpdatedAt
	w.mu.Unlock()

	logger.SetGauge("matches.current", float64(snap.Len()))
	log.Debug("Snapshot saved", logger.Fields{"matches": snap.Len()})
	return nil
}

func (w *Watcher) recordSuccess(ctx context.Context, cycle *Cycle, log *logger.Logger) {
	w.mu.Lock()
	failures := w.status.ConsecutiveFailures
	w.status.ConsecutiveFailures = 0
	w.status.LastSuccess = w.now()
	w.status.LastError = ""
	if cycle.Changes != nil {
		w.status.LastAdded = len(cycle.Changes.Added)
		w.status.LastRemoved = len(cycle.Changes.Removed)
	}
	w.mu.Unlock()

	if failures >= w.cfg.AlertAfter {
		log.Info("Checks recovered", logger.Fields{"failures": failures})
		w.alertAdmin(ctx, telegram.FormatRecovery(failures), log)
	}
}

func (w *Watcher) recordFailure(ctx context.Context, cycle *Cycle, err error, log *logger.Logger) {
	w.mu.Lock()
	w.status.ConsecutiveFailures++
	failures := w.status.ConsecutiveFailures
	w.status.LastError = err.Error()
	w.mu.Unlock()

	logger.IncrCounter("cycles.failed")
	fields := logger.Fields{"failures": failures}
	var netErr *scraper.NetworkError
	if errors.As(err, &netErr) && netErr.StatusCode != 0 {
		fields["status_code"] = netErr.StatusCode
	}
	log.Error("Check cycle failed", fields, err)

	if failures == w.cfg.AlertAfter {
		w.alertAdmin(ctx, telegram.FormatAdminAlert(failures, err), log)
	}
}

func (w *Watcher) alertAdmin(ctx context.Context, text string, log *logger.Logger) {
	if w.admin == nil || w.cfg.AdminChatID == 0 {
		return
	}
	if err := w.admin.Send(ctx, w.cfg.AdminChatID, text); err != nil {
		log.Error("Failed to alert admin", logger.Fields{"chat_id": w.cfg.AdminChatID}, err)
	}
}
