package models

// Favorite is a coin the user has chosen to track. ID is the
// exchange-assigned coin identifier and acts as the primary key.
type Favorite struct {
	ID     string   `json:"id" bson:"id"`
	Name   string   `json:"name,omitempty" bson:"name,omitempty"`
	Symbol string   `json:"symbol,omitempty" bson:"symbol,omitempty"`
	Thumb  string   `json:"thumb,omitempty" bson:"thumb,omitempty"`
	Price  *float64 `json:"price,omitempty" bson:"price,omitempty"`
}

// SearchCoin is a single entry of the upstream coin search response.
type SearchCoin struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Thumb         string `json:"thumb"`
	MarketCapRank int    `json:"market_cap_rank"`
}

// SearchResponse is the upstream /search response body.
type SearchResponse struct {
	Coins []SearchCoin `json:"coins"`
}

// FavoritesResponse is the payload of GET/POST /api/favorites.
type FavoritesResponse struct {
	Favorites []Favorite `json:"favorites"`
}
