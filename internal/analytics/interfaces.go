package analytics

import (
	"context"

	"github.com/luanmachadops/smartclass-telemetry/internal/domain"
)

// SessionContext resolves ambient user/tenant/page context at event-creation
// time, so call sites never thread identifiers through by hand. Implemented
// by session.Tracker; mocked in tests.
type SessionContext interface {
	Active() bool
	SessionID() string
	UserID() string
	SchoolID() string
	Page() domain.PageContext

	Identify(ctx context.Context, userID string)
	SetSchool(ctx context.Context, schoolID string)

	// NotePageView bumps the page-view counter and resets the per-page
	// baseline
	NotePageView(page domain.PageContext)

	// NoteEvent bumps the session event counter
	NoteEvent()
}
