package anomaly

import (
	"context"

	"github.com/minutehq/usagewatch/internal/domain/baseline"
	"github.com/minutehq/usagewatch/internal/domain/org"
	"github.com/minutehq/usagewatch/internal/domain/usage"
)

// Detector evaluates current usage against a baseline and returns every
// anomaly found. Heuristics are independent and may co-fire for the same
// tenant and mode; results are merged in stable detector-then-mode order.
type Detector interface {
	Detect(ctx context.Context, snap *usage.Snapshot, pattern *baseline.UsagePattern, tier org.Tier) []UsageAnomaly
}
