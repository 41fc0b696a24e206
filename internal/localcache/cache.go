package localcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ekoc/coinfolio/internal/models"
)

// Slot file names, one independently serialized JSON blob each.
const (
	slotFavorites    = "favorites.json"
	slotHoldings     = "holdings.json"
	slotPriceCache   = "priceCache.json"
	slotPriceLast    = "priceLast.json"
	slotBaseline     = "dailyBaseline.json"
	slotHideBalances = "hideBalances.json"
)

// Cache reads and writes the client-resident key-value slots. A read of
// a missing or corrupt slot returns a safe default rather than failing;
// every write is a full overwrite of the slot. Single active
// reader/writer is assumed; concurrent processes race and the last
// writer wins.
type Cache struct {
	dir string
}

// New creates a cache rooted at dir, creating the directory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) read(slot string, out interface{}) bool {
	data, err := os.ReadFile(filepath.Join(c.dir, slot))
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (c *Cache) write(slot string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", slot, err)
	}
	if err := os.WriteFile(filepath.Join(c.dir, slot), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", slot, err)
	}
	return nil
}

// Favorites returns the cached favorites list, empty when unset.
func (c *Cache) Favorites() []models.Favorite {
	var favorites []models.Favorite
	if !c.read(slotFavorites, &favorites) || favorites == nil {
		return []models.Favorite{}
	}
	return favorites
}

func (c *Cache) SaveFavorites(favorites []models.Favorite) error {
	return c.write(slotFavorites, favorites)
}

// Holdings returns the cached holdings list, empty when unset.
func (c *Cache) Holdings() []models.Holding {
	var holdings []models.Holding
	if !c.read(slotHoldings, &holdings) || holdings == nil {
		return []models.Holding{}
	}
	return holdings
}

func (c *Cache) SaveHoldings(holdings []models.Holding) error {
	return c.write(slotHoldings, holdings)
}

// Prices returns the cached price map, empty when unset.
func (c *Cache) Prices() map[string]float64 {
	var prices map[string]float64
	if !c.read(slotPriceCache, &prices) || prices == nil {
		return map[string]float64{}
	}
	return prices
}

func (c *Cache) SavePrices(prices map[string]float64) error {
	return c.write(slotPriceCache, prices)
}

// LastUpdated returns the completion time of the last successful price
// fetch, zero when unset.
func (c *Cache) LastUpdated() time.Time {
	var ms int64
	if !c.read(slotPriceLast, &ms) || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (c *Cache) SaveLastUpdated(t time.Time) error {
	return c.write(slotPriceLast, t.UnixMilli())
}

// Baseline returns the stored daily baseline, nil when unset.
func (c *Cache) Baseline() *models.Baseline {
	var baseline models.Baseline
	if !c.read(slotBaseline, &baseline) || baseline.TS == 0 {
		return nil
	}
	return &baseline
}

func (c *Cache) SaveBaseline(baseline models.Baseline) error {
	return c.write(slotBaseline, baseline)
}

// HideBalances returns the persisted hide-balances toggle.
func (c *Cache) HideBalances() bool {
	var hidden bool
	if !c.read(slotHideBalances, &hidden) {
		return false
	}
	return hidden
}

func (c *Cache) SaveHideBalances(hidden bool) error {
	return c.write(slotHideBalances, hidden)
}
