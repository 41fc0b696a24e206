// Package portfolio derives the portfolio value from holdings and
// prices and maintains the rolling 24-hour baseline used for the daily
// delta display.
package portfolio

import "github.com/ekoc/coinfolio/internal/models"

// Total computes the portfolio value as the sum of unit price times
// amount over all holdings. Missing prices contribute zero, so the
// total is a lower bound until every price resolves.
func Total(holdings []models.Holding, prices map[string]float64) float64 {
	var total float64
	for _, h := range holdings {
		total += prices[h.ID] * h.Amount
	}
	return total
}

// SeedHoldings returns the holdings list extended with a zero-amount
// holding for every favorite id that lacks one. Existing holdings keep
// their order and amounts; orphaned holdings are left alone.
func SeedHoldings(favorites []models.Favorite, holdings []models.Holding) []models.Holding {
	seen := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		seen[h.ID] = true
	}

	seeded := holdings
	for _, f := range favorites {
		if f.ID == "" || seen[f.ID] {
			continue
		}
		seeded = append(seeded, models.Holding{ID: f.ID, Amount: 0})
		seen[f.ID] = true
	}
	return seeded
}

// RemoveHolding returns the holdings list without the given id.
func RemoveHolding(holdings []models.Holding, id string) []models.Holding {
	next := make([]models.Holding, 0, len(holdings))
	for _, h := range holdings {
		if h.ID != id {
			next = append(next, h)
		}
	}
	return next
}

// SetAmount returns the holdings list with the given id set to amount.
func SetAmount(holdings []models.Holding, id string, amount float64) []models.Holding {
	next := make([]models.Holding, len(holdings))
	for i, h := range holdings {
		if h.ID == id {
			h.Amount = amount
		}
		next[i] = h
	}
	return next
}
