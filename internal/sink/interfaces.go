package sink

import (
	"context"

	"github.com/luanmachadops/smartclass-telemetry/internal/domain"
)

// Sink delivers finished telemetry to the backing store. Both writes are
// all-or-nothing per call; there is no partial acknowledgment.
type Sink interface {
	// WriteEvents delivers a batch of events
	WriteEvents(ctx context.Context, events []*domain.AnalyticsEvent) error

	// WriteSession delivers a finished session record
	WriteSession(ctx context.Context, session *domain.UserSession) error
}
