package store

import (
	"context"

	"github.com/luanmachadops/smartclass-telemetry/internal/domain"
)

// EventBuffer is the durable offline buffer for undelivered events
type EventBuffer interface {
	// SaveEvents appends events to the buffer, evicting the oldest entries
	// once the configured cap is exceeded
	SaveEvents(ctx context.Context, events []*domain.AnalyticsEvent) error

	// LoadEvents returns all buffered events in insertion order
	LoadEvents(ctx context.Context) ([]*domain.AnalyticsEvent, error)

	// ClearEvents removes all buffered events
	ClearEvents(ctx context.Context) error
}

// SessionStore persists the active-session crash-recovery snapshot
type SessionStore interface {
	SaveSnapshot(ctx context.Context, session *domain.UserSession) error

	// LoadSnapshot returns the stored snapshot, or nil when none exists
	LoadSnapshot(ctx context.Context) (*domain.UserSession, error)

	DeleteSnapshot(ctx context.Context) error
}
