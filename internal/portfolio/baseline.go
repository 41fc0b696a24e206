package portfolio

import (
	"time"

	"github.com/ekoc/coinfolio/internal/localcache"
	"github.com/ekoc/coinfolio/internal/logger"
	"github.com/ekoc/coinfolio/internal/models"
)

// baselineWindow is the rolling window after which the baseline is
// replaced wholesale.
const baselineWindow = 24 * time.Hour

// BaselineTracker maintains the daily baseline: the portfolio total
// captured at the start of the current 24-hour window. The rollover is
// evaluated on every recompute, not at a wall-clock boundary.
type BaselineTracker struct {
	cache    *localcache.Cache
	baseline *models.Baseline
}

// NewBaselineTracker loads any stored baseline from the local cache.
func NewBaselineTracker(cache *localcache.Cache) *BaselineTracker {
	return &BaselineTracker{
		cache:    cache,
		baseline: cache.Baseline(),
	}
}

// Baseline returns the current baseline, nil before the first update.
func (b *BaselineTracker) Baseline() *models.Baseline {
	return b.baseline
}

// Update evaluates the baseline against the given total and returns the
// absolute and percentage daily deltas. A missing baseline is captured
// as {now, total}; a baseline older than 24 hours is replaced the same
// way. Both deltas are zero when the baseline total is not positive,
// which also guards the division.
func (b *BaselineTracker) Update(total float64, now time.Time) (deltaAbs, deltaPct float64) {
	if b.baseline == nil || now.UnixMilli()-b.baseline.TS >= baselineWindow.Milliseconds() {
		b.baseline = &models.Baseline{TS: now.UnixMilli(), Total: total}
		if b.cache != nil {
			if err := b.cache.SaveBaseline(*b.baseline); err != nil {
				logger.Warn("Failed to persist daily baseline: %v", err)
			}
		}
	}

	if b.baseline.Total <= 0 {
		return 0, 0
	}

	deltaAbs = total - b.baseline.Total
	deltaPct = deltaAbs / b.baseline.Total * 100
	return deltaAbs, deltaPct
}
