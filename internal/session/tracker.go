package session

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/luanmachadops/smartclass-telemetry/internal/config"
	"github.com/luanmachadops/smartclass-telemetry/internal/domain"
	"github.com/luanmachadops/smartclass-telemetry/internal/sink"
	"github.com/luanmachadops/smartclass-telemetry/internal/store"
)

// Tracker bounds a visit's lifetime and aggregates its counters. At most
// one session is active at a time; Start while a session is active is a
// no-op (logged), End with no active session is a no-op.
type Tracker struct {
	mu        sync.Mutex
	current   *domain.UserSession
	page      domain.PageContext
	pageStart time.Time

	cfg       config.Session
	userAgent string
	sink      sink.Sink
	snapshots store.SessionStore
	log       *zap.Logger
}

// NewTracker creates a new session tracker
func NewTracker(cfg config.Session, appVersion string, snk sink.Sink, snapshots store.SessionStore, log *zap.Logger) *Tracker {
	return &Tracker{
		cfg:       cfg,
		userAgent: fmt.Sprintf("smartclass-telemetry/%s (%s; %s)", appVersion, runtime.GOOS, runtime.GOARCH),
		sink:      snk,
		snapshots: snapshots,
		log:       log,
	}
}

// Start opens a new session: generates an identifier, snapshots the device
// and attribution context, and persists a crash-recovery snapshot (best
// effort). A stale snapshot left by a crashed run is closed out first.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		t.log.Warn("Session already active, ignoring start",
			zap.String("session_id", t.current.SessionID))
		return
	}

	t.recoverStale(ctx)

	now := time.Now()
	t.current = &domain.UserSession{
		SessionID: uuid.New().String(),
		StartTime: now.UnixMilli(),
		Device:    snapshotDevice(),
		Referrer:  t.cfg.Referrer,
		UTM: domain.UTMParams{
			Source:   t.cfg.UTMSource,
			Medium:   t.cfg.UTMMedium,
			Campaign: t.cfg.UTMCampaign,
			Term:     t.cfg.UTMTerm,
			Content:  t.cfg.UTMContent,
		},
	}
	t.pageStart = now

	if err := t.snapshots.SaveSnapshot(ctx, t.current); err != nil {
		t.log.Warn("Failed to persist session snapshot", zap.Error(err))
	}

	t.log.Info("Session started",
		zap.String("session_id", t.current.SessionID))
}

// End closes the active session, transmits the finished record and clears
// the active reference. Idempotent.
func (t *Tracker) End(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return
	}

	finished := t.current
	t.current = nil

	finished.EndTime = time.Now().UnixMilli()
	finished.Duration = finished.EndTime - finished.StartTime

	if err := t.sink.WriteSession(ctx, finished); err != nil {
		t.log.Error("Failed to transmit finished session",
			zap.String("session_id", finished.SessionID),
			zap.Error(err))
	}

	if err := t.snapshots.DeleteSnapshot(ctx); err != nil {
		t.log.Warn("Failed to delete session snapshot", zap.Error(err))
	}

	t.log.Info("Session ended",
		zap.String("session_id", finished.SessionID),
		zap.Int64("duration_ms", finished.Duration),
		zap.Int64("events", finished.Events),
		zap.Int64("page_views", finished.PageViews))
}

// recoverStale closes out a snapshot left behind by a crashed run. Caller
// holds the lock.
func (t *Tracker) recoverStale(ctx context.Context) {
	stale, err := t.snapshots.LoadSnapshot(ctx)
	if err != nil {
		t.log.Warn("Failed to read stale session snapshot", zap.Error(err))
		return
	}
	if stale == nil {
		return
	}

	// The real end time was lost with the crash; best effort is now
	stale.EndTime = time.Now().UnixMilli()
	stale.Duration = stale.EndTime - stale.StartTime

	if err := t.sink.WriteSession(ctx, stale); err != nil {
		t.log.Warn("Failed to transmit recovered session",
			zap.String("session_id", stale.SessionID),
			zap.Error(err))
	} else {
		t.log.Info("Recovered session from previous run",
			zap.String("session_id", stale.SessionID))
	}

	if err := t.snapshots.DeleteSnapshot(ctx); err != nil {
		t.log.Warn("Failed to delete stale session snapshot", zap.Error(err))
	}
}

// Identify fixes the user on the active session
func (t *Tracker) Identify(ctx context.Context, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return
	}
	t.current.UserID = userID
	if err := t.snapshots.SaveSnapshot(ctx, t.current); err != nil {
		t.log.Warn("Failed to persist session snapshot", zap.Error(err))
	}
}

// SetSchool fixes the tenant on the active session
func (t *Tracker) SetSchool(ctx context.Context, schoolID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return
	}
	t.current.SchoolID = schoolID
	if err := t.snapshots.SaveSnapshot(ctx, t.current); err != nil {
		t.log.Warn("Failed to persist session snapshot", zap.Error(err))
	}
}

// Active reports whether a session is currently open
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil
}

// SessionID returns the active session identifier, or "" when none is open
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return ""
	}
	return t.current.SessionID
}

// UserID returns the user resolved at identify time, or ""
func (t *Tracker) UserID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return ""
	}
	return t.current.UserID
}

// SchoolID returns the tenant resolved at setSchool time, or ""
func (t *Tracker) SchoolID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return ""
	}
	return t.current.SchoolID
}

// Page returns the current page context, with the tracker's user agent and
// configured referrer filled in when the page itself carries none.
func (t *Tracker) Page() domain.PageContext {
	t.mu.Lock()
	defer t.mu.Unlock()

	page := t.page
	if page.UserAgent == "" {
		page.UserAgent = t.userAgent
	}
	if page.Referrer == "" {
		page.Referrer = t.cfg.Referrer
	}
	return page
}

// NotePageView records a page view: bumps the counter and resets the
// per-page baseline (page start timestamp)
func (t *Tracker) NotePageView(page domain.PageContext) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return
	}
	t.current.PageViews++
	t.page = page
	t.pageStart = time.Now()
}

// NoteEvent bumps the session event counter
func (t *Tracker) NoteEvent() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return
	}
	t.current.Events++
}

// PageDuration returns how long the current page has been active
func (t *Tracker) PageDuration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pageStart.IsZero() {
		return 0
	}
	return time.Since(t.pageStart)
}

// Current returns a copy of the active session, or nil
func (t *Tracker) Current() *domain.UserSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return nil
	}
	copied := *t.current
	return &copied
}

func snapshotDevice() domain.Device {
	hostname, _ := os.Hostname()
	return domain.Device{
		Type:     "server",
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		Hostname: hostname,
		NumCPU:   runtime.NumCPU(),
		Locale:   os.Getenv("LANG"),
		Timezone: time.Now().Location().String(),
	}
}
