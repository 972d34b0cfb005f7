package domain

// EventCategory classifies an analytics event
type EventCategory string

const (
	CategoryPageView   EventCategory = "page_view"
	CategoryUserAction EventCategory = "user_action"
	CategorySystem     EventCategory = "system_event"
	CategoryError      EventCategory = "error"
	CategoryPerf       EventCategory = "performance"
	CategoryConversion EventCategory = "conversion"
	CategoryEngagement EventCategory = "engagement"
	CategoryCustom     EventCategory = "custom"
)

// ValidCategory reports whether c is one of the fixed categories
func ValidCategory(c EventCategory) bool {
	switch c {
	case CategoryPageView, CategoryUserAction, CategorySystem, CategoryError,
		CategoryPerf, CategoryConversion, CategoryEngagement, CategoryCustom:
		return true
	}
	return false
}

// PageContext is the page-level context an event is enriched with
type PageContext struct {
	URL       string `json:"url"`
	Path      string `json:"path"`
	Referrer  string `json:"referrer"`
	UserAgent string `json:"user_agent"`
}

// AnalyticsEvent represents a single reportable occurrence. Immutable after
// creation; removed from the queue once flushed.
type AnalyticsEvent struct {
	EventID    string                 `json:"event_id"`
	Name       string                 `json:"name"`
	Category   EventCategory          `json:"category"`
	Label      string                 `json:"label,omitempty"`
	Value      float64                `json:"value,omitempty"`
	Properties map[string]interface{} `json:"properties"`
	UserID     string                 `json:"user_id,omitempty"`
	SchoolID   string                 `json:"school_id,omitempty"`
	SessionID  string                 `json:"session_id"`
	URL        string                 `json:"url"`
	Path       string                 `json:"path"`
	Referrer   string                 `json:"referrer"`
	UserAgent  string                 `json:"user_agent"`
	Timestamp  int64                  `json:"timestamp"`
}
