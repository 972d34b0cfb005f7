package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luanmachadops/smartclass-telemetry/internal/domain"
)

// Listener receives the full health snapshot after every poll
type Listener func(domain.HealthStatus)

// MonitorConfig holds the monitor's timing knobs
type MonitorConfig struct {
	Interval           time.Duration
	ProbeTimeout       time.Duration
	DegradedThreshold  time.Duration
	AggregateThreshold time.Duration
}

// Monitor polls the four backing subsystems, aggregates the results into a
// single snapshot and fans it out to registered listeners. Only the latest
// snapshot is kept; there is no history.
type Monitor struct {
	mu         sync.Mutex
	probes     Probes
	cfg        MonitorConfig
	listeners  map[int]Listener
	nextID     int
	last       domain.HealthStatus
	intervalCh chan time.Duration

	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once

	log *zap.Logger
}

// NewMonitor creates a new health monitor
func NewMonitor(cfg MonitorConfig, probes Probes, log *zap.Logger) *Monitor {
	return &Monitor{
		probes:     probes,
		cfg:        cfg,
		listeners:  map[int]Listener{},
		intervalCh: make(chan time.Duration, 1),
		done:       make(chan struct{}),
		log:        log,
	}
}

// AddStatusListener registers a callback and returns its handle
func (m *Monitor) AddStatusListener(fn Listener) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.listeners[m.nextID] = fn
	return m.nextID
}

// RemoveStatusListener unregisters the callback with the given handle
func (m *Monitor) RemoveStatusListener(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, id)
}

// Status returns the last known snapshot
func (m *Monitor) Status() domain.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// PerformHealthCheck runs the four probes in parallel, each with its own
// timeout, stores the aggregated snapshot and notifies every listener
// synchronously. It never returns an error: probe failures are captured in
// the snapshot itself.
func (m *Monitor) PerformHealthCheck(ctx context.Context) domain.HealthStatus {
	started := time.Now()

	checks := map[string]Prober{
		domain.CheckDatabase: m.probes.Database,
		domain.CheckAuth:     m.probes.Auth,
		domain.CheckStorage:  m.probes.Storage,
		domain.CheckRealtime: m.probes.Realtime,
	}

	type outcome struct {
		name   string
		result domain.HealthCheckResult
	}

	results := make(chan outcome, len(checks))
	var wg sync.WaitGroup

	for name, prober := range checks {
		wg.Add(1)
		go func(name string, prober Prober) {
			defer wg.Done()
			results <- outcome{name: name, result: m.runProbe(ctx, prober)}
		}(name, prober)
	}
	wg.Wait()
	close(results)

	details := make(map[string]domain.HealthCheckResult, len(checks))
	for o := range results {
		details[o.name] = o.result
	}

	elapsed := time.Since(started)
	status := domain.HealthStatus{
		Status:       domain.Aggregate(details, elapsed, m.cfg.AggregateThreshold),
		Timestamp:    time.Now(),
		ResponseTime: elapsed,
		Details:      details,
	}

	m.mu.Lock()
	m.last = status
	snapshot := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		snapshot = append(snapshot, fn)
	}
	m.mu.Unlock()

	// Iterate a copy so listeners can add/remove from inside a callback,
	// and isolate panics so one bad listener cannot block the rest
	for _, fn := range snapshot {
		m.notify(fn, status)
	}

	if status.Status != domain.StatusHealthy {
		m.log.Warn("Backing store not healthy",
			zap.String("status", string(status.Status)),
			zap.Duration("response_time", status.ResponseTime))
	}

	return status
}

func (m *Monitor) notify(fn Listener, status domain.HealthStatus) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("Health status listener panicked", zap.Any("panic", r))
		}
	}()
	fn(status)
}

// runProbe measures one probe under its own timeout. A timed-out probe is
// down with the timeout as its error detail, never left unknown.
func (m *Monitor) runProbe(ctx context.Context, prober Prober) domain.HealthCheckResult {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	started := time.Now()
	err := prober.Probe(probeCtx)
	elapsed := time.Since(started)

	result := domain.HealthCheckResult{
		ResponseTime: elapsed,
		LastCheck:    time.Now(),
	}

	switch {
	case err != nil:
		result.Status = domain.CheckDown
		result.Error = err.Error()
	case elapsed > m.cfg.DegradedThreshold:
		result.Status = domain.CheckDegraded
	default:
		result.Status = domain.CheckUp
	}

	return result
}

// Start begins periodic polling. The first check runs immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		m.cancel = cancel
		go m.run(runCtx)
	})
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	m.PerformHealthCheck(ctx)

	m.mu.Lock()
	interval := m.cfg.Interval
	m.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Health monitor shutting down")
			return
		case interval = <-m.intervalCh:
			ticker.Reset(interval)
			m.log.Info("Health poll interval changed", zap.Duration("interval", interval))
		case <-ticker.C:
			m.PerformHealthCheck(ctx)
		}
	}
}

// SetInterval changes the poll interval and restarts the timer
func (m *Monitor) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	m.mu.Lock()
	m.cfg.Interval = interval
	m.mu.Unlock()

	select {
	case m.intervalCh <- interval:
	default:
	}
}

// Stop halts polling. In-flight probes finish on their own; their effects
// are limited to the discarded snapshot.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
			<-m.done
		}
	})
}
