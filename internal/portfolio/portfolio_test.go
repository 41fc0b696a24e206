package portfolio

import (
	"math"
	"testing"
	"time"

	"github.com/ekoc/coinfolio/internal/localcache"
	"github.com/ekoc/coinfolio/internal/models"
)

func TestTotal(t *testing.T) {
	prices := map[string]float64{"bitcoin": 65000, "ethereum": 3200}

	tests := []struct {
		name     string
		holdings []models.Holding
		want     float64
	}{
		{"empty", nil, 0},
		{"single", []models.Holding{{ID: "bitcoin", Amount: 0.5}}, 32500},
		{"multiple", []models.Holding{
			{ID: "bitcoin", Amount: 0.5},
			{ID: "ethereum", Amount: 2},
		}, 38900},
		{"missing price contributes zero", []models.Holding{
			{ID: "bitcoin", Amount: 1},
			{ID: "unknown-coin", Amount: 100},
		}, 65000},
		{"zero amounts", []models.Holding{{ID: "bitcoin", Amount: 0}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Total(tt.holdings, prices)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Total = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTotalMonotonicInAmount(t *testing.T) {
	prices := map[string]float64{"bitcoin": 65000, "ethereum": 3200}
	holdings := []models.Holding{
		{ID: "bitcoin", Amount: 0.5},
		{ID: "ethereum", Amount: 2},
	}

	prev := Total(holdings, prices)
	for _, amount := range []float64{0.6, 1, 2.5, 10} {
		bumped := SetAmount(holdings, "bitcoin", amount)
		got := Total(bumped, prices)
		if got < prev {
			t.Fatalf("Total decreased from %v to %v when amount grew to %v", prev, got, amount)
		}
		prev = got
	}
}

func TestSeedHoldings(t *testing.T) {
	favorites := []models.Favorite{
		{ID: "bitcoin"},
		{ID: "ethereum"},
		{ID: ""},
	}
	holdings := []models.Holding{{ID: "ethereum", Amount: 2}}

	seeded := SeedHoldings(favorites, holdings)
	if len(seeded) != 2 {
		t.Fatalf("seeded length = %d, want 2", len(seeded))
	}
	if seeded[0].ID != "ethereum" || seeded[0].Amount != 2 {
		t.Errorf("existing holding changed: %v", seeded[0])
	}
	if seeded[1].ID != "bitcoin" || seeded[1].Amount != 0 {
		t.Errorf("missing favorite not seeded with zero amount: %v", seeded[1])
	}

	// idempotent
	again := SeedHoldings(favorites, seeded)
	if len(again) != 2 {
		t.Errorf("seeding again changed length to %d", len(again))
	}
}

func TestSeedHoldingsKeepsOrphans(t *testing.T) {
	holdings := []models.Holding{{ID: "dogecoin", Amount: 5}}
	seeded := SeedHoldings([]models.Favorite{{ID: "bitcoin"}}, holdings)

	if len(seeded) != 2 || seeded[0].ID != "dogecoin" {
		t.Errorf("orphaned holding dropped: %v", seeded)
	}
}

func TestRemoveHolding(t *testing.T) {
	holdings := []models.Holding{
		{ID: "bitcoin", Amount: 1},
		{ID: "ethereum", Amount: 2},
	}

	next := RemoveHolding(holdings, "bitcoin")
	if len(next) != 1 || next[0].ID != "ethereum" {
		t.Errorf("RemoveHolding = %v, want only ethereum", next)
	}

	next = RemoveHolding(next, "not-there")
	if len(next) != 1 {
		t.Errorf("RemoveHolding of unknown id changed the list: %v", next)
	}
}

func newTestTracker(t *testing.T) *BaselineTracker {
	t.Helper()
	cache, err := localcache.New(t.TempDir())
	if err != nil {
		t.Fatalf("localcache.New: %v", err)
	}
	return NewBaselineTracker(cache)
}

func TestBaselineFirstCapture(t *testing.T) {
	tracker := newTestTracker(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	abs, pct := tracker.Update(1000, now)
	if abs != 0 || pct != 0 {
		t.Errorf("first update deltas = (%v, %v), want (0, 0)", abs, pct)
	}
	if b := tracker.Baseline(); b == nil || b.Total != 1000 || b.TS != now.UnixMilli() {
		t.Errorf("baseline after first update = %v", b)
	}
}

func TestBaselineDeltas(t *testing.T) {
	tracker := newTestTracker(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tracker.Update(1000, now)
	abs, pct := tracker.Update(1100, now.Add(time.Hour))
	if abs != 100 || math.Abs(pct-10) > 1e-9 {
		t.Errorf("deltas = (%v, %v), want (100, 10)", abs, pct)
	}

	abs, pct = tracker.Update(900, now.Add(2*time.Hour))
	if abs != -100 || math.Abs(pct+10) > 1e-9 {
		t.Errorf("deltas = (%v, %v), want (-100, -10)", abs, pct)
	}
}

func TestBaselineRollover(t *testing.T) {
	tracker := newTestTracker(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tracker.Update(1000, now)

	// just inside the window: baseline sticks
	abs, _ := tracker.Update(1200, now.Add(24*time.Hour-time.Millisecond))
	if abs != 200 {
		t.Fatalf("delta just inside window = %v, want 200", abs)
	}

	// 24h+1ms: baseline replaced, deltas reset
	rolloverAt := now.Add(24*time.Hour + time.Millisecond)
	abs, pct := tracker.Update(1200, rolloverAt)
	if abs != 0 || pct != 0 {
		t.Errorf("deltas after rollover = (%v, %v), want (0, 0)", abs, pct)
	}
	if b := tracker.Baseline(); b == nil || b.TS != rolloverAt.UnixMilli() || b.Total != 1200 {
		t.Errorf("baseline after rollover = %v, want {%d 1200}", b, rolloverAt.UnixMilli())
	}
}

func TestBaselineZeroTotalGuard(t *testing.T) {
	tracker := newTestTracker(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tracker.Update(0, now)
	abs, pct := tracker.Update(500, now.Add(time.Hour))
	if abs != 0 || pct != 0 {
		t.Errorf("deltas against zero baseline = (%v, %v), want (0, 0)", abs, pct)
	}
}

func TestBaselinePersistsAcrossTrackers(t *testing.T) {
	dir := t.TempDir()
	cache, err := localcache.New(dir)
	if err != nil {
		t.Fatalf("localcache.New: %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	NewBaselineTracker(cache).Update(1000, now)

	reloaded := NewBaselineTracker(cache)
	abs, pct := reloaded.Update(1100, now.Add(time.Hour))
	if abs != 100 || math.Abs(pct-10) > 1e-9 {
		t.Errorf("deltas after reload = (%v, %v), want (100, 10)", abs, pct)
	}
}
