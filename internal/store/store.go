// Package store defines the persistence boundary for portfolio
// snapshots, the favorites list, and the advisory price cache, with a
// JSON-file implementation and a MongoDB implementation behind it.
package store

import (
	"context"
	"errors"
	"math"

	"github.com/ekoc/coinfolio/internal/models"
)

// Validation failures at the storage boundary. A transient empty state
// must never overwrite meaningful history with emptiness.
var (
	ErrEmptyHoldings  = errors.New("holdings list cannot be empty")
	ErrEmptyFavorites = errors.New("favorites list cannot be empty")
)

// Store persists snapshots, favorites, and the price cache. The
// "latest" record is always the most recently written snapshot and the
// history retains at most the configured retention count, newest first.
// The upsert/append/prune sequence is not transactional; a crash
// between steps can leave latest and history mutually inconsistent.
type Store interface {
	SaveSnapshot(ctx context.Context, req models.SnapshotRequest) (models.Snapshot, error)
	Snapshots(ctx context.Context) ([]models.Snapshot, error)
	LatestSnapshot(ctx context.Context) (*models.Snapshot, error)

	Favorites(ctx context.Context) ([]models.Favorite, error)
	SaveFavorites(ctx context.Context, favorites []models.Favorite) error

	PriceCache(ctx context.Context) (models.PriceCacheDoc, error)
	SavePriceCache(ctx context.Context, prices map[string]float64) error

	Close(ctx context.Context) error
}

// NormalizeHoldings drops entries with an empty id or a non-finite
// amount. What remains is what gets persisted.
func NormalizeHoldings(holdings []models.Holding) []models.Holding {
	cleaned := make([]models.Holding, 0, len(holdings))
	for _, h := range holdings {
		if h.ID == "" {
			continue
		}
		if math.IsNaN(h.Amount) || math.IsInf(h.Amount, 0) {
			continue
		}
		cleaned = append(cleaned, h)
	}
	return cleaned
}

// NormalizeFavorites drops entries with an empty id.
func NormalizeFavorites(favorites []models.Favorite) []models.Favorite {
	cleaned := make([]models.Favorite, 0, len(favorites))
	for _, f := range favorites {
		if f.ID == "" {
			continue
		}
		cleaned = append(cleaned, f)
	}
	return cleaned
}
