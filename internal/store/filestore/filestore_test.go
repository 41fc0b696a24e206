package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/ekoc/coinfolio/internal/models"
	"github.com/ekoc/coinfolio/internal/store"
)

func newTestStore(t *testing.T, limit int) *Store {
	t.Helper()
	s, err := New(t.TempDir(), limit)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// deterministic, strictly increasing timestamps
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return s
}

func TestSaveSnapshotRejectsEmptyHoldings(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	cases := [][]models.Holding{
		nil,
		{},
		{{ID: "", Amount: 1}},
		{{ID: "bitcoin", Amount: math.NaN()}},
	}
	for _, holdings := range cases {
		_, err := s.SaveSnapshot(ctx, models.SnapshotRequest{Holdings: holdings})
		if !errors.Is(err, store.ErrEmptyHoldings) {
			t.Errorf("SaveSnapshot(%v) error = %v, want ErrEmptyHoldings", holdings, err)
		}
	}

	snapshots, err := s.Snapshots(ctx)
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snapshots) != 0 {
		t.Errorf("rejected saves left %d snapshots, want 0", len(snapshots))
	}
}

func TestSnapshotRetention(t *testing.T) {
	const limit = 3
	s := newTestStore(t, limit)
	ctx := context.Background()

	var lastTS string
	for i := 0; i < limit+1; i++ {
		snap, err := s.SaveSnapshot(ctx, models.SnapshotRequest{
			Holdings: []models.Holding{{ID: "bitcoin", Amount: float64(i)}},
			TotalUSD: float64(i) * 100,
		})
		if err != nil {
			t.Fatalf("SaveSnapshot %d: %v", i, err)
		}
		lastTS = snap.TS
	}

	snapshots, err := s.Snapshots(ctx)
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snapshots) != limit {
		t.Fatalf("history has %d snapshots, want %d", len(snapshots), limit)
	}
	if snapshots[0].TS != lastTS {
		t.Errorf("newest snapshot TS = %s, want %s", snapshots[0].TS, lastTS)
	}
	for i := 1; i < len(snapshots); i++ {
		if snapshots[i-1].TS <= snapshots[i].TS {
			t.Errorf("snapshots not ordered newest first at %d: %s <= %s", i, snapshots[i-1].TS, snapshots[i].TS)
		}
	}
	// the oldest (amount 0) must have been pruned
	for _, snap := range snapshots {
		if snap.Holdings[0].Amount == 0 {
			t.Error("oldest snapshot survived pruning")
		}
	}
}

func TestLatestSnapshot(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	latest, err := s.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if latest != nil {
		t.Errorf("LatestSnapshot on empty store = %v, want nil", latest)
	}

	if _, err := s.SaveSnapshot(ctx, models.SnapshotRequest{
		Holdings: []models.Holding{{ID: "bitcoin", Amount: 1}},
		TotalUSD: 65000,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveSnapshot(ctx, models.SnapshotRequest{
		Holdings: []models.Holding{{ID: "bitcoin", Amount: 2}},
		TotalUSD: 130000,
	}); err != nil {
		t.Fatal(err)
	}

	latest, err = s.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if latest == nil || latest.TotalUSD != 130000 {
		t.Errorf("LatestSnapshot = %v, want the most recent write", latest)
	}
}

func TestSaveFavoritesRejectsEmpty(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	if err := s.SaveFavorites(ctx, []models.Favorite{{ID: "bitcoin", Name: "Bitcoin"}}); err != nil {
		t.Fatalf("SaveFavorites: %v", err)
	}

	err := s.SaveFavorites(ctx, []models.Favorite{{ID: ""}})
	if !errors.Is(err, store.ErrEmptyFavorites) {
		t.Fatalf("SaveFavorites error = %v, want ErrEmptyFavorites", err)
	}

	// prior state untouched
	favorites, err := s.Favorites(ctx)
	if err != nil {
		t.Fatalf("Favorites: %v", err)
	}
	if len(favorites) != 1 || favorites[0].ID != "bitcoin" {
		t.Errorf("Favorites after rejected save = %v, want the prior list", favorites)
	}
}

func TestPriceCacheRoundTrip(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	doc, err := s.PriceCache(ctx)
	if err != nil {
		t.Fatalf("PriceCache: %v", err)
	}
	if len(doc.Prices) != 0 || doc.TS != "" {
		t.Errorf("PriceCache on empty store = %v, want empty doc", doc)
	}

	if err := s.SavePriceCache(ctx, map[string]float64{"bitcoin": 65000}); err != nil {
		t.Fatalf("SavePriceCache: %v", err)
	}

	doc, err = s.PriceCache(ctx)
	if err != nil {
		t.Fatalf("PriceCache: %v", err)
	}
	if doc.Prices["bitcoin"] != 65000 || doc.TS == "" {
		t.Errorf("PriceCache = %v, want saved prices with timestamp", doc)
	}
}

func TestRecordStore(t *testing.T) {
	rs, err := NewRecordStore(filepath.Join(t.TempDir(), "records.json"))
	if err != nil {
		t.Fatalf("NewRecordStore: %v", err)
	}

	records, err := rs.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("List on fresh store = %v, want empty", records)
	}

	first, err := rs.Add(json.RawMessage(`{"kind":"note"}`))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	second, err := rs.Add(json.RawMessage(`{"kind":"other"}`))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if first.ID == second.ID {
		t.Errorf("record ids collided: %s", first.ID)
	}

	if err := rs.Delete(first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := rs.Delete(first.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Delete of missing id error = %v, want ErrRecordNotFound", err)
	}

	records, err = rs.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0].ID != second.ID {
		t.Errorf("List after delete = %v, want only %s", records, second.ID)
	}
}
