package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/luanmachadops/smartclass-telemetry/internal/domain"
)

// Start launches the flush loop: a periodic timer plus an immediate trigger
// channel, both draining the queue through flushOnce. The loop also drains
// any events left in the offline buffer by a previous run.
func (c *Collector) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		c.cancel = cancel
		go c.run(runCtx)
	})
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)

	// Crash recovery: anything buffered by a previous run goes out first
	if err := c.drainOffline(ctx); err != nil {
		c.log.Warn("Startup offline drain failed", zap.Error(err))
	}

	c.mu.Lock()
	interval := c.cfg.FlushInterval
	c.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("Flush loop shutting down")
			return

		case interval = <-c.intervalCh:
			ticker.Reset(interval)
			c.log.Info("Flush interval changed", zap.Duration("interval", interval))

		case <-c.trigger:
			if err := c.flushOnce(ctx); err != nil {
				c.log.Warn("Triggered flush failed", zap.Error(err))
			}

		case <-ticker.C:
			if c.queueLen() == 0 {
				continue
			}
			if err := c.flushOnce(ctx); err != nil {
				c.log.Warn("Scheduled flush failed", zap.Error(err))
			}
		}
	}
}

// ForceFlush drains and delivers the queue right now. The error reports the
// delivery outcome to operational callers; track call sites never see it.
func (c *Collector) ForceFlush(ctx context.Context) error {
	return c.flushOnce(ctx)
}

// flushOnce drains the queue with a swap-and-clear and attempts delivery.
// Success or failure is all-or-nothing for the drained batch: on failure the
// batch goes back to the front of the live queue AND into the offline
// buffer, so neither a retry loop nor process death loses it.
func (c *Collector) flushOnce(ctx context.Context) error {
	c.mu.Lock()
	batch := c.queue
	c.queue = nil
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := c.sink.WriteEvents(ctx, batch); err != nil {
		c.requeue(batch)
		if perr := c.buffer.SaveEvents(ctx, batch); perr != nil {
			// Explicit data-loss boundary: the buffered copy is gone, the
			// requeued copy remains
			c.log.Error("Failed to persist batch to offline buffer",
				zap.Int("event_count", len(batch)),
				zap.Error(perr))
		}
		return fmt.Errorf("failed to deliver batch of %d events: %w", len(batch), err)
	}

	c.log.Debug("Delivered batch", zap.Int("event_count", len(batch)))

	if err := c.drainOffline(ctx); err != nil {
		c.log.Warn("Offline drain failed", zap.Error(err))
	}

	return nil
}

// requeue pushes a failed batch back to the FRONT of the live queue so the
// next flush retries it before newer events. Events appended during the
// failed attempt end up behind it; cross-batch reordering on retry is an
// accepted limitation.
func (c *Collector) requeue(batch []*domain.AnalyticsEvent) {
	c.mu.Lock()
	c.queue = append(batch, c.queue...)
	c.mu.Unlock()
}

// drainOffline delivers anything persisted in the offline buffer and clears
// it only on confirmed success.
func (c *Collector) drainOffline(ctx context.Context) error {
	events, err := c.buffer.LoadEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to load offline buffer: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	if err := c.sink.WriteEvents(ctx, events); err != nil {
		return fmt.Errorf("failed to deliver %d buffered events: %w", len(events), err)
	}

	if err := c.buffer.ClearEvents(ctx); err != nil {
		return fmt.Errorf("failed to clear offline buffer: %w", err)
	}

	c.log.Info("Delivered offline buffer", zap.Int("event_count", len(events)))
	return nil
}

// Destroy stops the flush loop and fires a final detached best-effort
// delivery of whatever is still queued. The result is not awaited and
// cannot be reported; loss here is accepted.
func (c *Collector) Destroy() {
	c.destroyOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
			<-c.done
		}

		c.mu.Lock()
		batch := c.queue
		c.queue = nil
		timeout := c.cfg.DetachedTimeout
		c.mu.Unlock()

		if len(batch) == 0 {
			return
		}

		c.log.Info("Final detached flush", zap.Int("event_count", len(batch)))
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := c.sink.WriteEvents(ctx, batch); err != nil {
				c.log.Warn("Final detached flush failed", zap.Error(err))
			}
		}()
	})
}
