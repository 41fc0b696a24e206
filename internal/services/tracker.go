package services

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/ekoc/coinfolio/internal/client"
	"github.com/ekoc/coinfolio/internal/config"
	"github.com/ekoc/coinfolio/internal/localcache"
	"github.com/ekoc/coinfolio/internal/logger"
	"github.com/ekoc/coinfolio/internal/models"
	"github.com/ekoc/coinfolio/internal/portfolio"
	"github.com/ekoc/coinfolio/internal/refresh"
	"github.com/ekoc/coinfolio/internal/sync"
)

// ViewState is an immutable copy of everything the terminal view
// renders.
type ViewState struct {
	Favorites    []models.Favorite
	Holdings     []models.Holding
	Prices       map[string]float64
	Rate         float64
	TotalUSD     float64
	DeltaAbs     float64
	DeltaPct     float64
	LastUpdated  time.Time
	RefreshState refresh.State
	Countdown    string
	HideBalances bool
}

// TrackerService orchestrates the portfolio tracker: local cache,
// backend sync, price refresh, and valuation.
type TrackerService struct {
	config   *config.Config
	client   *client.APIClient
	cache    *localcache.Cache
	baseline *portfolio.BaselineTracker
	refresh  *refresh.Orchestrator
	syncer   *sync.Syncer

	mu        stdsync.Mutex
	favorites []models.Favorite
	holdings  []models.Holding
	totalUSD  float64
	deltaAbs  float64
	deltaPct  float64
	hidden    bool

	onChange func()
}

// NewTrackerService creates a tracker with all dependencies and loads
// the locally cached state.
func NewTrackerService(cfg *config.Config) (*TrackerService, error) {
	apiClient := client.NewAPIClient(cfg.BaseURL)

	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return nil, err
	}
	cache, err := localcache.New(dataDir)
	if err != nil {
		return nil, err
	}

	t := &TrackerService{
		config:   cfg,
		client:   apiClient,
		cache:    cache,
		baseline: portfolio.NewBaselineTracker(cache),
		syncer:   sync.NewSyncer(apiClient, cfg.DebounceDelay),
	}

	t.favorites = cache.Favorites()
	t.holdings = portfolio.SeedHoldings(t.favorites, cache.Holdings())
	t.hidden = cache.HideBalances()

	t.refresh = refresh.New(refresh.Options{
		Source:         apiClient,
		IDs:            t.holdingIDs,
		OnUpdate:       t.handleUpdate,
		Interval:       cfg.RefreshInterval,
		Poll:           cfg.PollInterval,
		VsCurrency:     cfg.VsCurrency,
		LocalCurrency:  cfg.LocalCurrency,
		ReferenceAsset: cfg.ReferenceAsset,
	})

	return t, nil
}

// SetOnChange registers a callback invoked after every state change.
func (t *TrackerService) SetOnChange(fn func()) {
	t.onChange = fn
}

// WaitForAPIReady blocks until the backend health check passes.
func (t *TrackerService) WaitForAPIReady(maxAttempts int) bool {
	return t.client.WaitForAPIReady(maxAttempts)
}

// Start hydrates state from the backend and launches the refresh loop.
// Remote state wins over the local cache when it is non-empty; cached
// prices fill in underneath anything resolved since.
func (t *TrackerService) Start(ctx context.Context) {
	if favorites, err := t.client.Favorites(); err != nil {
		logger.Warn("Failed to fetch remote favorites: %v", err)
	} else if len(favorites) > 0 {
		t.mu.Lock()
		t.favorites = favorites
		t.holdings = portfolio.SeedHoldings(favorites, t.holdings)
		t.mu.Unlock()
		t.persistLocal()
	}

	if snapshot, err := t.syncer.Hydrate(); err != nil {
		logger.Warn("Failed to fetch remote snapshot: %v", err)
	} else if snapshot != nil && len(snapshot.Holdings) > 0 {
		t.mu.Lock()
		t.holdings = portfolio.SeedHoldings(t.favorites, snapshot.Holdings)
		t.mu.Unlock()
		t.persistLocal()
	}

	t.refresh.Hydrate(t.cache.Prices(), t.cache.LastUpdated())
	if cached, err := t.client.PriceCache(); err != nil {
		logger.Debug("Failed to fetch remote price cache: %v", err)
	} else {
		t.refresh.Hydrate(cached, time.Time{})
	}

	t.recompute(t.refresh.Prices())
	t.refresh.Start(ctx)
	go t.refresh.FetchMissing()
}

// Stop shuts down the refresh loop and pushes any pending snapshot.
func (t *TrackerService) Stop() {
	t.refresh.Stop()
	t.syncer.Flush()
}

// Refresh requests an immediate price refresh.
func (t *TrackerService) Refresh() {
	t.refresh.TriggerRefresh()
}

// Search queries the backend coin search proxy.
func (t *TrackerService) Search(query string) ([]models.SearchCoin, error) {
	result, err := t.client.Search(query)
	if err != nil {
		return nil, err
	}
	return result.Coins, nil
}

// SetAmount updates the held quantity for a coin and schedules a
// snapshot push.
func (t *TrackerService) SetAmount(id string, amount float64) {
	t.mu.Lock()
	t.holdings = portfolio.SetAmount(t.holdings, id, amount)
	t.mu.Unlock()

	t.persistLocal()
	t.recompute(t.refresh.Prices())
	t.queueSnapshot()
	t.notify()
}

// AddFavorite adds a coin from search results to the tracked set with
// a zero holding, then resolves its price without waiting for the
// next interval.
func (t *TrackerService) AddFavorite(coin models.SearchCoin) {
	t.mu.Lock()
	for _, favorite := range t.favorites {
		if favorite.ID == coin.ID {
			t.mu.Unlock()
			return
		}
	}
	t.favorites = append(t.favorites, models.Favorite{
		ID:     coin.ID,
		Name:   coin.Name,
		Symbol: coin.Symbol,
		Thumb:  coin.Thumb,
	})
	t.holdings = portfolio.SeedHoldings(t.favorites, t.holdings)
	t.mu.Unlock()

	t.persistLocal()
	t.pushFavorites()
	t.queueSnapshot()
	go t.refresh.FetchMissing()
	t.notify()
}

// RemoveFavorite drops a coin and its holding from the tracked set.
func (t *TrackerService) RemoveFavorite(id string) {
	t.mu.Lock()
	favorites := t.favorites[:0]
	for _, favorite := range t.favorites {
		if favorite.ID != id {
			favorites = append(favorites, favorite)
		}
	}
	t.favorites = favorites
	t.holdings = portfolio.RemoveHolding(t.holdings, id)
	t.mu.Unlock()

	t.persistLocal()
	t.pushFavorites()
	t.recompute(t.refresh.Prices())
	t.queueSnapshot()
	t.notify()
}

// ToggleHidden flips the balance-masking preference.
func (t *TrackerService) ToggleHidden() {
	t.mu.Lock()
	t.hidden = !t.hidden
	hidden := t.hidden
	t.mu.Unlock()

	if err := t.cache.SaveHideBalances(hidden); err != nil {
		logger.Warn("Failed to persist hide preference: %v", err)
	}
	t.notify()
}

// State returns a copy of the current view state.
func (t *TrackerService) State() ViewState {
	prices := t.refresh.Prices()
	lastUpdated := t.refresh.LastUpdated()

	t.mu.Lock()
	defer t.mu.Unlock()
	return ViewState{
		Favorites:    append([]models.Favorite(nil), t.favorites...),
		Holdings:     append([]models.Holding(nil), t.holdings...),
		Prices:       prices,
		Rate:         t.refresh.Rate(),
		TotalUSD:     t.totalUSD,
		DeltaAbs:     t.deltaAbs,
		DeltaPct:     t.deltaPct,
		LastUpdated:  lastUpdated,
		RefreshState: t.refresh.State(),
		Countdown:    t.refresh.Countdown(time.Now()),
		HideBalances: t.hidden,
	}
}

func (t *TrackerService) holdingIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.holdings))
	for _, holding := range t.holdings {
		ids = append(ids, holding.ID)
	}
	return ids
}

// handleUpdate runs after every successful price fetch: revalue, roll
// the daily baseline, persist the caches, and push the advisory price
// cache upstream.
func (t *TrackerService) handleUpdate(update refresh.Update) {
	t.recompute(update.Prices)

	if err := t.cache.SavePrices(update.Prices); err != nil {
		logger.Warn("Failed to cache prices: %v", err)
	}
	if err := t.cache.SaveLastUpdated(update.LastUpdated); err != nil {
		logger.Warn("Failed to cache refresh time: %v", err)
	}
	t.syncer.PushPriceCache(update.Prices)
	t.notify()
}

func (t *TrackerService) recompute(prices map[string]float64) {
	t.mu.Lock()
	holdings := append([]models.Holding(nil), t.holdings...)
	t.mu.Unlock()

	total := portfolio.Total(holdings, prices)
	deltaAbs, deltaPct := t.baseline.Update(total, time.Now())

	t.mu.Lock()
	t.totalUSD = total
	t.deltaAbs = deltaAbs
	t.deltaPct = deltaPct
	t.mu.Unlock()
}

func (t *TrackerService) persistLocal() {
	t.mu.Lock()
	favorites := append([]models.Favorite(nil), t.favorites...)
	holdings := append([]models.Holding(nil), t.holdings...)
	t.mu.Unlock()

	if err := t.cache.SaveFavorites(favorites); err != nil {
		logger.Warn("Failed to cache favorites: %v", err)
	}
	if err := t.cache.SaveHoldings(holdings); err != nil {
		logger.Warn("Failed to cache holdings: %v", err)
	}
}

func (t *TrackerService) pushFavorites() {
	t.mu.Lock()
	favorites := append([]models.Favorite(nil), t.favorites...)
	t.mu.Unlock()

	if len(favorites) == 0 {
		// the backend rejects empty favorite lists; local removal
		// of the last coin stays local
		return
	}
	if err := t.client.SaveFavorites(favorites); err != nil {
		logger.Warn("Failed to push favorites: %v", err)
	}
}

func (t *TrackerService) queueSnapshot() {
	t.mu.Lock()
	holdings := append([]models.Holding(nil), t.holdings...)
	total := t.totalUSD
	t.mu.Unlock()

	if len(holdings) == 0 {
		return
	}
	t.syncer.QueueSnapshot(holdings, total)
}

func (t *TrackerService) notify() {
	if t.onChange != nil {
		t.onChange()
	}
}
