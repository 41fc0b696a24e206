package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ekoc/coinfolio/internal/coingecko"
	"github.com/ekoc/coinfolio/internal/config"
	"github.com/ekoc/coinfolio/internal/models"
	"github.com/ekoc/coinfolio/internal/store/filestore"
)

// stubUpstream mimics the upstream price API.
func stubUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"gecko_says":"(V3) To the Moon!"}`))
	})
	mux.HandleFunc("/simple/price", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-cg-demo-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"status":{"error_code":401}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		ids := r.URL.Query().Get("ids")
		if strings.Contains(ids, "tether") {
			w.Write([]byte(`{"tether":{"try":41.2}}`))
			return
		}
		w.Write([]byte(`{"bitcoin":{"usd":65000},"ethereum":{"usd":3200}}`))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"coins":[{"id":"bitcoin","name":"Bitcoin","symbol":"BTC"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testServer(t *testing.T, upstreamURL string) *Server {
	t.Helper()

	dir := t.TempDir()
	st, err := filestore.New(dir, 10)
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	records, err := filestore.NewRecordStore(filepath.Join(dir, "records.json"))
	if err != nil {
		t.Fatalf("filestore.NewRecordStore: %v", err)
	}

	srv := &Server{
		cfg:     config.NewConfig(),
		gecko:   coingecko.NewClient(upstreamURL, "test-key"),
		store:   st,
		records: records,
	}
	srv.router = srv.buildRouter()
	return srv
}

func doRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := testServer(t, stubUpstream(t).URL)

	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", rec.Code)
	}
	var body map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body["ok"] {
		t.Error("GET /health ok = false, want true")
	}
}

func TestPriceProxyPassthrough(t *testing.T) {
	srv := testServer(t, stubUpstream(t).URL)

	rec := doRequest(t, srv, http.MethodGet, "/api/price?ids=bitcoin,ethereum&vs_currencies=usd", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/price status = %d, want 200", rec.Code)
	}

	var prices map[string]map[string]float64
	if err := json.NewDecoder(rec.Body).Decode(&prices); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if prices["bitcoin"]["usd"] != 65000 {
		t.Errorf("bitcoin price = %v, want 65000", prices["bitcoin"]["usd"])
	}
}

func TestProxyRelaysUpstreamStatus(t *testing.T) {
	srv := testServer(t, stubUpstream(t).URL)
	srv.gecko = coingecko.NewClient(stubUpstream(t).URL, "wrong-key")

	rec := doRequest(t, srv, http.MethodGet, "/api/price?ids=bitcoin&vs_currencies=usd", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/price with bad key status = %d, want upstream 401", rec.Code)
	}
}

func TestProxyTransportFailure(t *testing.T) {
	// point at a closed server
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	srv := testServer(t, deadURL)
	rec := doRequest(t, srv, http.MethodGet, "/api/ping", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("GET /api/ping status = %d, want 500", rec.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "proxy_failed" || resp.Message == "" {
		t.Errorf("error envelope = %+v, want proxy_failed with message", resp)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	srv := testServer(t, stubUpstream(t).URL)

	for _, target := range []string{"/api/search", "/api/search?query=", "/api/search?query=%20"} {
		rec := doRequest(t, srv, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", target, rec.Code)
		}
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/search?query=bit", "")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/search?query=bit status = %d, want 200", rec.Code)
	}
}

func TestMarketChartRequiresID(t *testing.T) {
	srv := testServer(t, stubUpstream(t).URL)

	rec := doRequest(t, srv, http.MethodGet, "/api/market-chart", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("GET /api/market-chart status = %d, want 400", rec.Code)
	}
}

func TestBalanceRoundTrip(t *testing.T) {
	srv := testServer(t, stubUpstream(t).URL)

	rec := doRequest(t, srv, http.MethodPost, "/api/balance",
		`{"holdings":[{"id":"bitcoin","amount":0.5}],"totalUsd":32500}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/balance status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/balance", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/balance status = %d, want 200", rec.Code)
	}

	var resp models.BalanceResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Snapshots) != 1 || resp.Snapshots[0].TotalUSD != 32500 {
		t.Errorf("snapshots = %v, want the saved snapshot", resp.Snapshots)
	}
}

func TestBalanceRejectsEmptyHoldings(t *testing.T) {
	srv := testServer(t, stubUpstream(t).URL)

	rec := doRequest(t, srv, http.MethodPost, "/api/balance", `{"holdings":[],"totalUsd":0}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("POST /api/balance with empty holdings status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/balance", `{"totalUsd":0}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST /api/balance without holdings status = %d, want 400", rec.Code)
	}
}

func TestFavoritesRejectsEmptyList(t *testing.T) {
	srv := testServer(t, stubUpstream(t).URL)

	rec := doRequest(t, srv, http.MethodPost, "/api/favorites",
		`{"favorites":[{"id":"bitcoin","name":"Bitcoin"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/favorites status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/favorites", `{"favorites":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("POST /api/favorites empty status = %d, want 400", rec.Code)
	}

	// prior state untouched
	rec = doRequest(t, srv, http.MethodGet, "/api/favorites", "")
	var resp models.FavoritesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Favorites) != 1 || resp.Favorites[0].ID != "bitcoin" {
		t.Errorf("favorites = %v, want the prior list", resp.Favorites)
	}
}

func TestPriceCacheEndpoints(t *testing.T) {
	srv := testServer(t, stubUpstream(t).URL)

	rec := doRequest(t, srv, http.MethodGet, "/api/price-cache", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/price-cache status = %d, want 200", rec.Code)
	}
	var empty struct {
		Prices map[string]float64 `json:"prices"`
		TS     *string            `json:"ts"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&empty); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if empty.TS != nil || len(empty.Prices) != 0 {
		t.Errorf("empty price cache = %+v, want no prices and null ts", empty)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/price-cache", `{"prices":{"bitcoin":65000}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/price-cache status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/price-cache", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST /api/price-cache without prices status = %d, want 400", rec.Code)
	}
}

func TestRecordsEndpoints(t *testing.T) {
	srv := testServer(t, stubUpstream(t).URL)

	rec := doRequest(t, srv, http.MethodPost, "/records", `{"note":"hello"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /records status = %d, want 201", rec.Code)
	}
	var created models.Record
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created record has empty id")
	}

	rec = doRequest(t, srv, http.MethodGet, "/records", "")
	var list models.RecordsResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Records) != 1 {
		t.Fatalf("records = %v, want one entry", list.Records)
	}

	rec = doRequest(t, srv, http.MethodDelete, "/records/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE /records/%s status = %d, want 200", created.ID, rec.Code)
	}

	rec = doRequest(t, srv, http.MethodDelete, "/records/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("DELETE of missing record status = %d, want 404", rec.Code)
	}
}
