package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ekoc/coinfolio/internal/logger"
	"github.com/ekoc/coinfolio/internal/models"
	"github.com/ekoc/coinfolio/internal/store"
	"github.com/ekoc/coinfolio/internal/store/filestore"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}

// relayUpstream writes the upstream body and status verbatim, or the
// generic proxy failure envelope on transport error.
func relayUpstream(w http.ResponseWriter, status int, body []byte, err error) {
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "proxy_failed",
			Message: err.Error(),
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.Error("Failed to write upstream body: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	status, body, err := s.gecko.Ping()
	relayUpstream(w, status, body, err)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	ids := r.URL.Query().Get("ids")
	vs := r.URL.Query().Get("vs_currencies")
	status, body, err := s.gecko.SimplePrice(ids, vs)
	relayUpstream(w, status, body, err)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_query"})
		return
	}
	status, body, err := s.gecko.Search(query)
	relayUpstream(w, status, body, err)
}

func (s *Server) handleMarketChart(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_id"})
		return
	}
	vs := r.URL.Query().Get("vs_currency")
	if vs == "" {
		vs = "usd"
	}
	days := r.URL.Query().Get("days")
	if days == "" {
		days = "30"
	}
	status, body, err := s.gecko.MarketChart(id, vs, days)
	relayUpstream(w, status, body, err)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.store.Snapshots(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "db_read_failed",
			Message: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, models.BalanceResponse{Snapshots: snapshots})
}

func (s *Server) handlePostBalance(w http.ResponseWriter, r *http.Request) {
	var req models.SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Holdings == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_body"})
		return
	}

	snap, err := s.store.SaveSnapshot(r.Context(), req)
	if errors.Is(err, store.ErrEmptyHoldings) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "empty_holdings",
			Message: "Holdings list cannot be empty",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "db_write_failed",
			Message: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"ok":       true,
		"snapshot": snap,
	})
}

func (s *Server) handleGetFavorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := s.store.Favorites(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "db_read_failed",
			Message: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, models.FavoritesResponse{Favorites: favorites})
}

func (s *Server) handlePostFavorites(w http.ResponseWriter, r *http.Request) {
	var req models.FavoritesResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Favorites == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_body"})
		return
	}

	err := s.store.SaveFavorites(r.Context(), req.Favorites)
	if errors.Is(err, store.ErrEmptyFavorites) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "empty_favorites",
			Message: "Favorites list cannot be empty",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "db_write_failed",
			Message: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleGetPriceCache(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.PriceCache(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "db_read_failed",
			Message: err.Error(),
		})
		return
	}

	var ts *string
	if doc.TS != "" {
		ts = &doc.TS
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"prices": doc.Prices,
		"ts":     ts,
	})
}

func (s *Server) handlePostPriceCache(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prices map[string]float64 `json:"prices"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prices == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_body"})
		return
	}

	if err := s.store.SavePriceCache(r.Context(), req.Prices); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "db_write_failed",
			Message: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleGetRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.records.List()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "read_failed",
			Message: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, models.RecordsResponse{Records: records})
}

func (s *Server) handlePostRecord(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil || len(payload) == 0 || !json.Valid(payload) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_body"})
		return
	}

	record, err := s.records.Add(payload)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "write_failed",
			Message: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.records.Delete(id)
	if errors.Is(err, filestore.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "delete_failed",
			Message: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
