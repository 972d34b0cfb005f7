package probe

import (
	"context"
	"fmt"
)

// Unconfigured stands in for a probe whose subsystem has no configuration.
// An unverifiable subsystem reports down rather than silently up.
type Unconfigured string

func (u Unconfigured) Probe(_ context.Context) error {
	return fmt.Errorf("%s probe not configured", string(u))
}
