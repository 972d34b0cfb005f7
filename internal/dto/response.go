package dto

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// AcceptedResponse acknowledges a fire-and-forget track call
type AcceptedResponse struct {
	Status string `json:"status"`
}

// ConfigResponse mirrors the current pipeline configuration
type ConfigResponse struct {
	Enabled          bool    `json:"enabled"`
	SampleRate       float64 `json:"sample_rate"`
	BatchSize        int     `json:"batch_size"`
	FlushIntervalSec int     `json:"flush_interval_sec"`
	RealtimeMode     bool    `json:"realtime_mode"`
	DefaultCurrency  string  `json:"default_currency"`
}

// FlushResponse reports the outcome of a forced flush
type FlushResponse struct {
	Status string `json:"status"`
}
