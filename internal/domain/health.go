package domain

import "time"

// CheckStatus is the state of a single backing-store probe
type CheckStatus string

const (
	CheckUp       CheckStatus = "up"
	CheckDegraded CheckStatus = "degraded"
	CheckDown     CheckStatus = "down"
)

// OverallStatus is the aggregate derived from the four checks
type OverallStatus string

const (
	StatusHealthy   OverallStatus = "healthy"
	StatusDegraded  OverallStatus = "degraded"
	StatusUnhealthy OverallStatus = "unhealthy"
)

// Names of the four fixed backing-store checks
const (
	CheckDatabase = "database"
	CheckAuth     = "auth"
	CheckStorage  = "storage"
	CheckRealtime = "realtime"
)

// HealthCheckResult is the outcome of one probe
type HealthCheckResult struct {
	Status       CheckStatus   `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	LastCheck    time.Time     `json:"last_check"`
}

// HealthStatus is a point-in-time snapshot of backing-store health. The
// overall status is derived, never set directly; each poll fully replaces
// the previous snapshot.
type HealthStatus struct {
	Status       OverallStatus                `json:"status"`
	Timestamp    time.Time                    `json:"timestamp"`
	ResponseTime time.Duration                `json:"response_time"`
	Details      map[string]HealthCheckResult `json:"details"`
}

// Aggregate derives the overall status: unhealthy if any check is down,
// degraded if any check is degraded or the aggregate response time exceeds
// the threshold, healthy otherwise.
func Aggregate(details map[string]HealthCheckResult, responseTime, threshold time.Duration) OverallStatus {
	anyDegraded := false
	for _, result := range details {
		switch result.Status {
		case CheckDown:
			return StatusUnhealthy
		case CheckDegraded:
			anyDegraded = true
		}
	}
	if anyDegraded || responseTime > threshold {
		return StatusDegraded
	}
	return StatusHealthy
}
