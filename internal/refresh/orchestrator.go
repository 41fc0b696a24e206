// Package refresh decides when to re-fetch prices from the backend,
// merges results into the held price map, and exposes the countdown to
// the next automatic refresh.
package refresh

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ekoc/coinfolio/internal/logger"
)

// State is the explicit refresh state. Overlapping refreshes are
// rejected while Fetching, so a manual trigger during an in-flight
// interval refresh cannot race it.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateFailed
)

// PriceSource is the backend surface the orchestrator fetches from.
type PriceSource interface {
	Prices(ids []string, vsCurrency string) (map[string]map[string]float64, error)
}

// Update carries the outcome of a successful fetch.
type Update struct {
	Prices      map[string]float64
	Rate        float64
	LastUpdated time.Time
}

// Options configures an Orchestrator.
type Options struct {
	Source   PriceSource
	IDs      func() []string
	OnUpdate func(Update)

	Interval time.Duration
	Poll     time.Duration

	VsCurrency     string
	LocalCurrency  string
	ReferenceAsset string
}

// Orchestrator owns the periodic refresh loop, the manual trigger, and
// the held price map. One instance per active view; Stop releases the
// loop and the trigger listener.
type Orchestrator struct {
	opts Options

	mu          sync.Mutex
	state       State
	lastErr     error
	lastUpdated time.Time
	prices      map[string]float64
	rate        float64

	trigger chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an orchestrator; zero durations fall back to the 15
// minute refresh interval and 30 second poll cadence.
func New(opts Options) *Orchestrator {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Minute
	}
	if opts.Poll <= 0 {
		opts.Poll = 30 * time.Second
	}
	if opts.VsCurrency == "" {
		opts.VsCurrency = "usd"
	}
	return &Orchestrator{
		opts:    opts,
		prices:  map[string]float64{},
		trigger: make(chan struct{}, 1),
	}
}

// ShouldRefresh reports whether a refresh is due: lastUpdated unset or
// at least interval in the past. The check runs on the poll cadence,
// so the actual refresh can lag the nominal interval by up to one poll.
func ShouldRefresh(lastUpdated, now time.Time, interval time.Duration) bool {
	return lastUpdated.IsZero() || now.Sub(lastUpdated) >= interval
}

// FormatCountdown renders the time until the next automatic refresh as
// MM:SS, empty before the first successful fetch.
func FormatCountdown(lastUpdated, now time.Time, interval time.Duration) string {
	if lastUpdated.IsZero() {
		return ""
	}
	elapsed := now.Sub(lastUpdated)
	remaining := interval - (elapsed % interval)
	if remaining < 0 {
		remaining = 0
	}
	mm := int(remaining / time.Minute)
	ss := int((remaining % time.Minute) / time.Second)
	return fmt.Sprintf("%02d:%02d", mm, ss)
}

// Hydrate merges a previously cached price map underneath any values
// already resolved in memory, so a reload never shows a blank price
// for a previously known id.
func (o *Orchestrator) Hydrate(cached map[string]float64, lastUpdated time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, price := range cached {
		if _, ok := o.prices[id]; !ok {
			o.prices[id] = price
		}
	}
	if o.lastUpdated.IsZero() {
		o.lastUpdated = lastUpdated
	}
}

// Prices returns a copy of the held price map.
func (o *Orchestrator) Prices() map[string]float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	prices := make(map[string]float64, len(o.prices))
	for id, price := range o.prices {
		prices[id] = price
	}
	return prices
}

// Rate returns the last known USD to local-currency conversion rate.
func (o *Orchestrator) Rate() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rate
}

// LastUpdated returns the completion time of the last successful fetch.
func (o *Orchestrator) LastUpdated() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastUpdated
}

// State returns the current refresh state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Countdown renders the remaining time to the next automatic refresh.
func (o *Orchestrator) Countdown(now time.Time) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return FormatCountdown(o.lastUpdated, now, o.opts.Interval)
}

// Start runs the poll loop until the context is cancelled or Stop is
// called. The refresh gate is evaluated immediately and then on every
// poll tick; manual triggers bypass the gate.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)
	o.wg.Add(1)

	go func() {
		defer o.wg.Done()

		o.checkAndRefresh()

		ticker := time.NewTicker(o.opts.Poll)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.checkAndRefresh()
			case <-o.trigger:
				o.refresh()
			}
		}
	}()
}

// Stop cancels the poll loop. In-flight requests are not aborted.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// TriggerRefresh requests a manual refresh. Non-blocking; collapses
// into an already pending trigger.
func (o *Orchestrator) TriggerRefresh() {
	select {
	case o.trigger <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) checkAndRefresh() {
	o.mu.Lock()
	due := ShouldRefresh(o.lastUpdated, time.Now(), o.opts.Interval)
	o.mu.Unlock()
	if due {
		o.refresh()
	}
}

// refresh replaces the price map from the current id set. A refresh
// already in flight wins; this call is dropped.
func (o *Orchestrator) refresh() {
	o.mu.Lock()
	if o.state == StateFetching {
		o.mu.Unlock()
		logger.Debug("Refresh already in flight, skipping")
		return
	}
	o.state = StateFetching
	o.mu.Unlock()

	ids := o.opts.IDs()
	if len(ids) == 0 {
		o.mu.Lock()
		o.prices = map[string]float64{}
		o.lastUpdated = time.Now()
		o.state = StateIdle
		o.mu.Unlock()
		o.fetchRate()
		o.notify()
		return
	}

	resp, err := o.opts.Source.Prices(ids, o.opts.VsCurrency)
	if err != nil {
		// stale data persists; the next poll tick retries
		o.mu.Lock()
		o.state = StateFailed
		o.lastErr = err
		o.mu.Unlock()
		logger.Warn("Price refresh failed: %v", err)
		return
	}

	prices := make(map[string]float64, len(ids))
	for _, id := range ids {
		prices[id] = resp[id][o.opts.VsCurrency]
	}

	o.mu.Lock()
	o.prices = prices
	o.lastUpdated = time.Now()
	o.state = StateIdle
	o.lastErr = nil
	o.mu.Unlock()

	o.fetchRate()
	o.notify()
}

// FetchMissing resolves just the ids absent from the held map, without
// waiting for the interval, so newly added favorites get an immediate
// price. Results merge over the existing map.
func (o *Orchestrator) FetchMissing() {
	ids := o.opts.IDs()

	o.mu.Lock()
	if o.state == StateFetching {
		o.mu.Unlock()
		return
	}
	var missing []string
	for _, id := range ids {
		if _, ok := o.prices[id]; !ok {
			missing = append(missing, id)
		}
	}
	o.mu.Unlock()

	if len(missing) == 0 {
		return
	}

	resp, err := o.opts.Source.Prices(missing, o.opts.VsCurrency)
	if err != nil {
		logger.Warn("Missing-price fetch failed: %v", err)
		return
	}

	o.mu.Lock()
	for _, id := range missing {
		o.prices[id] = resp[id][o.opts.VsCurrency]
	}
	o.lastUpdated = time.Now()
	o.mu.Unlock()

	o.notify()
}

// fetchRate refreshes the USD to local-currency conversion rate using
// the reference asset as proxy. Failures are swallowed.
func (o *Orchestrator) fetchRate() {
	if o.opts.LocalCurrency == "" || o.opts.ReferenceAsset == "" {
		return
	}

	resp, err := o.opts.Source.Prices([]string{o.opts.ReferenceAsset}, o.opts.LocalCurrency)
	if err != nil {
		logger.Debug("Conversion rate fetch failed: %v", err)
		return
	}

	rate := resp[o.opts.ReferenceAsset][o.opts.LocalCurrency]
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return
	}

	o.mu.Lock()
	o.rate = rate
	o.mu.Unlock()
}

func (o *Orchestrator) notify() {
	if o.opts.OnUpdate == nil {
		return
	}
	o.mu.Lock()
	update := Update{
		Prices:      make(map[string]float64, len(o.prices)),
		Rate:        o.rate,
		LastUpdated: o.lastUpdated,
	}
	for id, price := range o.prices {
		update.Prices[id] = price
	}
	o.mu.Unlock()
	o.opts.OnUpdate(update)
}
