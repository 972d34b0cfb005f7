package analytics

import (
	"context"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/luanmachadops/smartclass-telemetry/internal/domain"
	"github.com/luanmachadops/smartclass-telemetry/internal/sink"
	"github.com/luanmachadops/smartclass-telemetry/internal/store"
)

// Config is the runtime-mutable pipeline configuration
type Config struct {
	Enabled         bool
	SampleRate      float64
	BatchSize       int
	FlushInterval   time.Duration
	RealtimeMode    bool
	DefaultCurrency string
	DetachedTimeout time.Duration
}

// ConfigUpdate is a partial update; nil fields are left unchanged
type ConfigUpdate struct {
	Enabled       *bool          `json:"enabled,omitempty"`
	BatchSize     *int           `json:"batch_size,omitempty"`
	FlushInterval *time.Duration `json:"flush_interval,omitempty"`
	RealtimeMode  *bool          `json:"realtime_mode,omitempty"`
}

// TrackOptions carries the optional per-call fields of TrackEvent
type TrackOptions struct {
	Label    string
	Value    float64
	UserID   string
	SchoolID string
	Page     *domain.PageContext
}

// Collector accepts event descriptions, enriches them and queues them for
// delivery. Delivery is fire-and-forget: nothing in here returns transport
// errors to a track call site.
type Collector struct {
	mu    sync.Mutex
	cfg   Config
	queue []*domain.AnalyticsEvent

	// sampling decision made once at construction
	sampled bool

	session SessionContext
	sink    sink.Sink
	buffer  store.EventBuffer
	log     *zap.Logger

	trigger    chan struct{}
	intervalCh chan time.Duration
	cancel     context.CancelFunc
	done       chan struct{}

	startOnce   sync.Once
	destroyOnce sync.Once
}

// NewCollector creates a new collector. The sampling decision is made here,
// once: a sampled-out collector silently drops every track call.
func NewCollector(cfg Config, session SessionContext, snk sink.Sink, buffer store.EventBuffer, log *zap.Logger) *Collector {
	return &Collector{
		cfg:        cfg,
		sampled:    cfg.SampleRate >= 1.0 || rand.Float64() < cfg.SampleRate,
		session:    session,
		sink:       snk,
		buffer:     buffer,
		log:        log,
		trigger:    make(chan struct{}, 1),
		intervalCh: make(chan time.Duration, 1),
		done:       make(chan struct{}),
	}
}

func (c *Collector) enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Enabled && c.sampled
}

// TrackEvent builds an enriched event and queues it for delivery. ERROR
// category events and realtime mode flush immediately; reaching the batch
// size flushes; everything else waits for the timer.
func (c *Collector) TrackEvent(name string, category domain.EventCategory, properties map[string]interface{}, opts *TrackOptions) {
	if !c.enabled() {
		return
	}
	if !c.session.Active() {
		c.log.Debug("Dropping event without active session", zap.String("name", name))
		return
	}
	if name == "" || !domain.ValidCategory(category) {
		c.log.Warn("Dropping malformed event",
			zap.String("name", name),
			zap.String("category", string(category)))
		return
	}
	if properties == nil {
		properties = map[string]interface{}{}
	}

	// Enrichment failures must not escape the call boundary
	if _, err := json.Marshal(properties); err != nil {
		c.log.Warn("Dropping event with unserializable properties",
			zap.String("name", name),
			zap.Error(err))
		return
	}

	if opts == nil {
		opts = &TrackOptions{}
	}

	page := c.session.Page()
	if opts.Page != nil {
		page = *opts.Page
	}

	userID := opts.UserID
	if userID == "" {
		userID = c.session.UserID()
	}
	schoolID := opts.SchoolID
	if schoolID == "" {
		schoolID = c.session.SchoolID()
	}

	event := &domain.AnalyticsEvent{
		EventID:    uuid.New().String(),
		Name:       name,
		Category:   category,
		Label:      opts.Label,
		Value:      opts.Value,
		Properties: properties,
		UserID:     userID,
		SchoolID:   schoolID,
		SessionID:  c.session.SessionID(),
		URL:        page.URL,
		Path:       page.Path,
		Referrer:   page.Referrer,
		UserAgent:  page.UserAgent,
		Timestamp:  time.Now().UnixMilli(),
	}

	c.mu.Lock()
	c.queue = append(c.queue, event)
	queued := len(c.queue)
	immediate := category == domain.CategoryError || c.cfg.RealtimeMode
	threshold := queued >= c.cfg.BatchSize
	c.mu.Unlock()

	c.session.NoteEvent()

	if immediate || threshold {
		c.signalFlush()
	}
}

// TrackPageView records a page view and resets the per-page baseline
func (c *Collector) TrackPageView(page domain.PageContext, title string) {
	if !c.enabled() {
		return
	}

	c.session.NotePageView(page)

	properties := map[string]interface{}{
		"title": title,
	}
	c.TrackEvent("page_view", domain.CategoryPageView, properties, &TrackOptions{Page: &page})
}

// TrackError wraps an error into an ERROR category event. Errors always
// flush immediately; they must not be lost to batching delay.
func (c *Collector) TrackError(err error, context map[string]interface{}) {
	if err == nil {
		return
	}

	properties := map[string]interface{}{
		"error_message": err.Error(),
		"error_type":    fmt.Sprintf("%T", err),
		"stack":         string(debug.Stack()),
	}
	for k, v := range context {
		properties[k] = v
	}

	c.TrackEvent("application_error", domain.CategoryError, properties, nil)
}

// TrackConversion records a CONVERSION event with a monetary value
func (c *Collector) TrackConversion(name string, value float64, currency string, properties map[string]interface{}) {
	if currency == "" {
		c.mu.Lock()
		currency = c.cfg.DefaultCurrency
		c.mu.Unlock()
	}

	props := map[string]interface{}{
		"currency": currency,
	}
	for k, v := range properties {
		props[k] = v
	}

	c.TrackEvent(name, domain.CategoryConversion, props, &TrackOptions{Value: value})
}

// Identify fixes the user on the session and emits an identify event
func (c *Collector) Identify(ctx context.Context, userID string, traits map[string]interface{}) {
	c.session.Identify(ctx, userID)
	c.TrackEvent("identify", domain.CategorySystem, traits, &TrackOptions{UserID: userID})
}

// SetSchool fixes the tenant on the session and emits a school event
func (c *Collector) SetSchool(ctx context.Context, schoolID string, properties map[string]interface{}) {
	c.session.SetSchool(ctx, schoolID)
	c.TrackEvent("set_school", domain.CategorySystem, properties, &TrackOptions{SchoolID: schoolID})
}

// GetConfig returns a copy of the current configuration
func (c *Collector) GetConfig() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// UpdateConfig applies a partial configuration update. Changing the flush
// interval restarts the timer.
func (c *Collector) UpdateConfig(update ConfigUpdate) {
	c.mu.Lock()
	if update.Enabled != nil {
		c.cfg.Enabled = *update.Enabled
	}
	if update.BatchSize != nil && *update.BatchSize > 0 {
		c.cfg.BatchSize = *update.BatchSize
	}
	if update.RealtimeMode != nil {
		c.cfg.RealtimeMode = *update.RealtimeMode
	}
	intervalChanged := update.FlushInterval != nil && *update.FlushInterval > 0 &&
		*update.FlushInterval != c.cfg.FlushInterval
	if intervalChanged {
		c.cfg.FlushInterval = *update.FlushInterval
	}
	interval := c.cfg.FlushInterval
	c.mu.Unlock()

	if intervalChanged {
		select {
		case c.intervalCh <- interval:
		default:
		}
	}
}

func (c *Collector) signalFlush() {
	select {
	case c.trigger <- struct{}{}:
	default:
		// a flush is already pending
	}
}

func (c *Collector) queueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// QueuedEvents reports the current in-memory queue depth
func (c *Collector) QueuedEvents() int {
	return c.queueLen()
}
