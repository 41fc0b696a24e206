package models

// Holding is a user-entered quantity owned of a given coin. ID refers
// to a Favorite; every favorite id is expected to have a holding, while
// orphaned holdings are tolerated.
type Holding struct {
	ID     string  `json:"id" bson:"id"`
	Amount float64 `json:"amount" bson:"amount"`
}

// Snapshot is a persisted point-in-time record of holdings and total
// value. TS is an ISO-8601 string to stay byte-compatible with the
// stored documents.
type Snapshot struct {
	TS       string    `json:"ts" bson:"ts"`
	Holdings []Holding `json:"holdings" bson:"holdings"`
	TotalUSD float64   `json:"totalUsd" bson:"totalUsd"`
}

// SnapshotRequest is the POST /api/balance payload.
type SnapshotRequest struct {
	Holdings []Holding `json:"holdings"`
	TotalUSD float64   `json:"totalUsd"`
}

// BalanceResponse is the GET /api/balance payload: history limited to
// the retention count, newest first.
type BalanceResponse struct {
	Snapshots []Snapshot `json:"snapshots"`
}

// PriceCacheDoc is the single overwritten record used to avoid blank
// prices on reload before the first refresh completes.
type PriceCacheDoc struct {
	TS     string             `json:"ts" bson:"ts"`
	Prices map[string]float64 `json:"prices" bson:"prices"`
}

// Baseline is the portfolio total captured at the start of the current
// 24-hour window. TS is unix milliseconds, matching the cached blob of
// the original deployment.
type Baseline struct {
	TS    int64   `json:"ts"`
	Total float64 `json:"total"`
}
