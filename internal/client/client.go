package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ekoc/coinfolio/internal/logger"
	"github.com/ekoc/coinfolio/internal/models"
)

// APIClient handles all HTTP communication with the coinfolio backend.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new API client for the given base URL.
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Get makes a GET request to the specified endpoint.
func (c *APIClient) Get(endpoint string, result interface{}) error {
	return c.request(http.MethodGet, endpoint, nil, result)
}

// Post makes a POST request to the specified endpoint.
func (c *APIClient) Post(endpoint string, body interface{}, result interface{}) error {
	return c.request(http.MethodPost, endpoint, body, result)
}

// request is the core HTTP request method.
func (c *APIClient) request(method, endpoint string, body interface{}, result interface{}) error {
	url := c.baseURL + endpoint
	start := time.Now()
	logger.Debug("Starting %s request to %s", method, url)

	var requestBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request body: %w", err)
		}
		requestBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, requestBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		logger.Error("Request failed after (%s) %v: %v", url, elapsed, err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)
	logger.Debug("Request to %s completed in %v with status %d", url, elapsed, resp.StatusCode)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		logger.Error("%s: HTTP error %d: %s", url, resp.StatusCode, string(bodyBytes))
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			logger.Error("%s: Error decoding response: %v", url, err)
			return fmt.Errorf("error decoding response: %w", err)
		}
	}

	return nil
}

// Ping checks if the backend is ready.
func (c *APIClient) Ping() error {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping failed with status %d", resp.StatusCode)
	}
	return nil
}

// WaitForAPIReady waits for the backend to become ready.
func (c *APIClient) WaitForAPIReady(maxAttempts int) bool {
	logger.Info("Checking API readiness...")

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		logger.Debug("Checking API readiness (attempt %d/%d)...", attempt, maxAttempts)

		if err := c.Ping(); err == nil {
			logger.Info("API is ready!")
			return true
		}

		time.Sleep(time.Second)
	}

	logger.Error("API failed to become ready after %d attempts", maxAttempts)
	return false
}

// Prices performs a batched spot price lookup through the proxy. The
// response maps coin id to quote currency to unit price.
func (c *APIClient) Prices(ids []string, vsCurrency string) (map[string]map[string]float64, error) {
	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", vsCurrency)

	var result map[string]map[string]float64
	if err := c.Get("/api/price?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Search looks up coins by name or symbol through the proxy.
func (c *APIClient) Search(query string) (*models.SearchResponse, error) {
	params := url.Values{}
	params.Set("query", query)

	var result models.SearchResponse
	if err := c.Get("/api/search?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LatestSnapshot fetches the most recent remote snapshot, nil when the
// history is empty.
func (c *APIClient) LatestSnapshot() (*models.Snapshot, error) {
	var result models.BalanceResponse
	if err := c.Get("/api/balance", &result); err != nil {
		return nil, err
	}
	if len(result.Snapshots) == 0 {
		return nil, nil
	}
	return &result.Snapshots[0], nil
}

// SaveSnapshot pushes the current holdings and total to the backend.
func (c *APIClient) SaveSnapshot(holdings []models.Holding, totalUSD float64) error {
	return c.Post("/api/balance", models.SnapshotRequest{
		Holdings: holdings,
		TotalUSD: totalUSD,
	}, nil)
}

// Favorites fetches the remotely stored favorites list.
func (c *APIClient) Favorites() ([]models.Favorite, error) {
	var result models.FavoritesResponse
	if err := c.Get("/api/favorites", &result); err != nil {
		return nil, err
	}
	return result.Favorites, nil
}

// SaveFavorites pushes the favorites list to the backend.
func (c *APIClient) SaveFavorites(favorites []models.Favorite) error {
	return c.Post("/api/favorites", models.FavoritesResponse{Favorites: favorites}, nil)
}

// PriceCache fetches the advisory server-side price cache.
func (c *APIClient) PriceCache() (map[string]float64, error) {
	var result struct {
		Prices map[string]float64 `json:"prices"`
	}
	if err := c.Get("/api/price-cache", &result); err != nil {
		return nil, err
	}
	if result.Prices == nil {
		result.Prices = map[string]float64{}
	}
	return result.Prices, nil
}

// SavePriceCache pushes the advisory price cache for quick hydration
// on the next load.
func (c *APIClient) SavePriceCache(prices map[string]float64) error {
	return c.Post("/api/price-cache", map[string]interface{}{"prices": prices}, nil)
}
