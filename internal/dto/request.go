package dto

// Page carries the page context a UI process reports with its calls
type Page struct {
	URL       string `json:"url"`
	Path      string `json:"path"`
	Referrer  string `json:"referrer"`
	UserAgent string `json:"user_agent"`
}

// TrackEventRequest represents a track event request
type TrackEventRequest struct {
	Name       string                 `json:"name" binding:"required"`
	Category   string                 `json:"category" binding:"required"`
	Label      string                 `json:"label"`
	Value      float64                `json:"value"`
	Properties map[string]interface{} `json:"properties"`
	UserID     string                 `json:"user_id"`
	SchoolID   string                 `json:"school_id"`
	Page       *Page                  `json:"page"`
}

// TrackPageViewRequest represents a page view
type TrackPageViewRequest struct {
	URL       string `json:"url" binding:"required"`
	Path      string `json:"path"`
	Referrer  string `json:"referrer"`
	UserAgent string `json:"user_agent"`
	Title     string `json:"title"`
}

// TrackErrorRequest represents an application error report
type TrackErrorRequest struct {
	Message string                 `json:"message" binding:"required"`
	Context map[string]interface{} `json:"context"`
}

// TrackConversionRequest represents a conversion with a monetary value
type TrackConversionRequest struct {
	Name       string                 `json:"name" binding:"required"`
	Value      float64                `json:"value"`
	Currency   string                 `json:"currency"`
	Properties map[string]interface{} `json:"properties"`
}

// IdentifyRequest fixes the user on the active session
type IdentifyRequest struct {
	UserID string                 `json:"user_id" binding:"required"`
	Traits map[string]interface{} `json:"traits"`
}

// SetSchoolRequest fixes the tenant on the active session
type SetSchoolRequest struct {
	SchoolID   string                 `json:"school_id" binding:"required"`
	Properties map[string]interface{} `json:"properties"`
}

// UpdateConfigRequest is a partial pipeline config update
type UpdateConfigRequest struct {
	Enabled          *bool `json:"enabled"`
	BatchSize        *int  `json:"batch_size"`
	FlushIntervalSec *int  `json:"flush_interval_sec"`
	RealtimeMode     *bool `json:"realtime_mode"`
}
