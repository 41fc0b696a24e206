package models

import "encoding/json"

// Record is a generic append-only entry of the local JSON record store.
// The id is a timestamp with a random suffix assigned on insert.
type Record struct {
	ID        string          `json:"id"`
	CreatedAt string          `json:"createdAt"`
	Data      json.RawMessage `json:"data"`
}

// RecordsResponse is the GET /records payload.
type RecordsResponse struct {
	Records []Record `json:"records"`
}
