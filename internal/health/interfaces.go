package health

import "context"

// Prober is a single lightweight connectivity check against one backing
// subsystem. It reports reachability, not deep validity.
type Prober interface {
	Probe(ctx context.Context) error
}

// Probes are the four fixed backing-store checks
type Probes struct {
	Database Prober
	Auth     Prober
	Storage  Prober
	Realtime Prober
}
