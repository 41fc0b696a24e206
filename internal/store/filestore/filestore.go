// Package filestore persists snapshots, favorites, and the price cache
// as small JSON files, one blob per concern, created on demand.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ekoc/coinfolio/internal/models"
	"github.com/ekoc/coinfolio/internal/store"
)

const (
	snapshotsFile  = "snapshots.json"
	favoritesFile  = "favorites_store.json"
	priceCacheFile = "price_cache.json"
)

const isoFormat = "2006-01-02T15:04:05.000Z07:00"

// Store is the single-file JSON variant of the storage backend.
type Store struct {
	dir   string
	limit int
	now   func() time.Time
}

// New creates a file store rooted at dir with the given snapshot
// retention limit.
func New(dir string, historyLimit int) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &Store{dir: dir, limit: historyLimit, now: time.Now}, nil
}

func (s *Store) readJSON(name string, out interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return nil
}

func (s *Store) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// SaveSnapshot validates and appends a snapshot, then prunes history to
// the retention limit, newest first.
func (s *Store) SaveSnapshot(ctx context.Context, req models.SnapshotRequest) (models.Snapshot, error) {
	cleaned := store.NormalizeHoldings(req.Holdings)
	if len(cleaned) == 0 {
		return models.Snapshot{}, store.ErrEmptyHoldings
	}

	snap := models.Snapshot{
		TS:       s.now().UTC().Format(isoFormat),
		Holdings: cleaned,
		TotalUSD: req.TotalUSD,
	}

	var snapshots []models.Snapshot
	if err := s.readJSON(snapshotsFile, &snapshots); err != nil {
		return models.Snapshot{}, err
	}

	snapshots = append(snapshots, snap)
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].TS > snapshots[j].TS
	})

	if len(snapshots) > s.limit {
		snapshots = snapshots[:s.limit]
	}

	if err := s.writeJSON(snapshotsFile, snapshots); err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

// Snapshots returns the retained history, newest first.
func (s *Store) Snapshots(ctx context.Context) ([]models.Snapshot, error) {
	var snapshots []models.Snapshot
	if err := s.readJSON(snapshotsFile, &snapshots); err != nil {
		return nil, err
	}
	if snapshots == nil {
		snapshots = []models.Snapshot{}
	}
	return snapshots, nil
}

// LatestSnapshot returns the most recent snapshot, nil when none exists.
func (s *Store) LatestSnapshot(ctx context.Context) (*models.Snapshot, error) {
	snapshots, err := s.Snapshots(ctx)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}

// Favorites returns the stored favorites list.
func (s *Store) Favorites(ctx context.Context) ([]models.Favorite, error) {
	var favorites []models.Favorite
	if err := s.readJSON(favoritesFile, &favorites); err != nil {
		return nil, err
	}
	if favorites == nil {
		favorites = []models.Favorite{}
	}
	return favorites, nil
}

// SaveFavorites overwrites the favorites list; an empty normalized list
// is rejected so a transient empty state cannot wipe the stored one.
func (s *Store) SaveFavorites(ctx context.Context, favorites []models.Favorite) error {
	cleaned := store.NormalizeFavorites(favorites)
	if len(cleaned) == 0 {
		return store.ErrEmptyFavorites
	}
	return s.writeJSON(favoritesFile, cleaned)
}

// PriceCache returns the advisory price cache document.
func (s *Store) PriceCache(ctx context.Context) (models.PriceCacheDoc, error) {
	var doc models.PriceCacheDoc
	if err := s.readJSON(priceCacheFile, &doc); err != nil {
		return models.PriceCacheDoc{}, err
	}
	if doc.Prices == nil {
		doc.Prices = map[string]float64{}
	}
	return doc, nil
}

// SavePriceCache overwrites the advisory price cache.
func (s *Store) SavePriceCache(ctx context.Context, prices map[string]float64) error {
	doc := models.PriceCacheDoc{
		TS:     s.now().UTC().Format(isoFormat),
		Prices: prices,
	}
	return s.writeJSON(priceCacheFile, doc)
}

// Close is a no-op for the file backend.
func (s *Store) Close(ctx context.Context) error {
	return nil
}
