package domain

// Device is a snapshot of the host environment, taken once at session start
type Device struct {
	Type     string `json:"type"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	Hostname string `json:"hostname"`
	NumCPU   int    `json:"num_cpu"`
	Locale   string `json:"locale,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// UTMParams are the campaign attribution fields captured at session start
type UTMParams struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Term     string `json:"utm_term,omitempty"`
	Content  string `json:"utm_content,omitempty"`
}

// UserSession represents a tracked visit. Once ended it is transmitted and
// discarded; no further mutation.
type UserSession struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	SchoolID  string    `json:"school_id,omitempty"`
	StartTime int64     `json:"start_time"`
	EndTime   int64     `json:"end_time,omitempty"`
	Duration  int64     `json:"duration,omitempty"`
	PageViews int64     `json:"page_views"`
	Events    int64     `json:"events"`
	Device    Device    `json:"device"`
	Referrer  string    `json:"referrer,omitempty"`
	UTM       UTMParams `json:"utm"`
}
