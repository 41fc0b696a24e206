package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Store backends for the snapshot/favorites/price-cache endpoints.
const (
	StoreFile  = "file"
	StoreMongo = "mongo"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port        int
	UpstreamURL string
	APIKey      string

	// Tracker settings
	BaseURL         string
	APIReadyTimeout int

	// Storage settings
	StoreBackend string
	DataDir      string
	DataFile     string
	HistoryLimit int

	// Mongo settings (document-store variant)
	MongoURI            string
	MongoDB             string
	SnapshotCollection  string
	FavoritesCollection string
	PriceCacheCol       string

	// Refresh settings
	RefreshInterval time.Duration
	PollInterval    time.Duration
	DebounceDelay   time.Duration

	// Currency settings
	VsCurrency     string
	LocalCurrency  string
	ReferenceAsset string
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Port:                4000,
		UpstreamURL:         "https://api.coingecko.com/api/v3",
		APIReadyTimeout:     30,
		StoreBackend:        StoreFile,
		HistoryLimit:        10,
		SnapshotCollection:  "crypto",
		FavoritesCollection: "favorites",
		PriceCacheCol:       "price_cache",
		RefreshInterval:     15 * time.Minute,
		PollInterval:        30 * time.Second,
		DebounceDelay:       time.Second,
		VsCurrency:          "usd",
		LocalCurrency:       "try",
		ReferenceAsset:      "tether",
	}
}

// LoadFromEnvironment loads configuration from environment variables
func (c *Config) LoadFromEnvironment() {
	if port := os.Getenv("COINFOLIO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Port = p
		}
	}

	if upstream := os.Getenv("COINFOLIO_UPSTREAM_URL"); upstream != "" {
		c.UpstreamURL = upstream
	}

	// The upstream demo key uses the same variable name as the original deployment.
	if key := os.Getenv("API_KEY"); key != "" {
		c.APIKey = key
	}
	if key := os.Getenv("COINFOLIO_API_KEY"); key != "" {
		c.APIKey = key
	}

	if backend := os.Getenv("COINFOLIO_STORE"); backend != "" {
		c.StoreBackend = backend
	}

	if dataDir := os.Getenv("COINFOLIO_DATA_DIR"); dataDir != "" {
		c.DataDir = dataDir
	}

	if dataFile := os.Getenv("COINFOLIO_DATA_FILE"); dataFile != "" {
		c.DataFile = dataFile
	}

	if limit := os.Getenv("COINFOLIO_HISTORY_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			c.HistoryLimit = l
		}
	}

	for _, key := range []string{"MONGO_URL", "MONGODB_URI", "MONGO_URI"} {
		if uri := os.Getenv(key); uri != "" {
			c.MongoURI = uri
			break
		}
	}

	for _, key := range []string{"MONGODB_DB", "MONGO_DB"} {
		if db := os.Getenv(key); db != "" {
			c.MongoDB = db
			break
		}
	}

	if col := os.Getenv("MONGODB_COLLECTION"); col != "" {
		c.SnapshotCollection = col
	}

	if col := os.Getenv("MONGODB_COLLECTION_FAVS"); col != "" {
		c.FavoritesCollection = col
	}

	if col := os.Getenv("MONGODB_COLLECTION_PRICE"); col != "" {
		c.PriceCacheCol = col
	}

	if baseURL := os.Getenv("COINFOLIO_BASE_URL"); baseURL != "" {
		c.BaseURL = baseURL
	}

	if timeout := os.Getenv("COINFOLIO_API_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			c.APIReadyTimeout = t
		}
	}
}

// SetBaseURL sets the base URL based on the configured port
func (c *Config) SetBaseURL() {
	if c.BaseURL == "" {
		c.BaseURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
}

// ResolveDataDir returns the local data directory, defaulting to
// ~/.coinfolio, creating it if needed.
func (c *Config) ResolveDataDir() (string, error) {
	if c.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		c.DataDir = filepath.Join(homeDir, ".coinfolio")
	}

	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return c.DataDir, nil
}

// ResolveDataFile returns the path of the JSON record store file,
// defaulting to records.json inside the data directory.
func (c *Config) ResolveDataFile() (string, error) {
	if c.DataFile != "" {
		return c.DataFile, nil
	}

	dataDir, err := c.ResolveDataDir()
	if err != nil {
		return "", err
	}

	c.DataFile = filepath.Join(dataDir, "records.json")
	return c.DataFile, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got: %d", c.Port)
	}

	if c.UpstreamURL == "" {
		return fmt.Errorf("upstream URL cannot be empty")
	}

	if c.StoreBackend != StoreFile && c.StoreBackend != StoreMongo {
		return fmt.Errorf("store backend must be %q or %q, got: %q", StoreFile, StoreMongo, c.StoreBackend)
	}

	if c.StoreBackend == StoreMongo && c.MongoURI == "" {
		return fmt.Errorf("MONGO_URL (or MONGODB_URI/MONGO_URI) is not set")
	}

	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive, got: %d", c.HistoryLimit)
	}

	if c.APIReadyTimeout <= 0 {
		return fmt.Errorf("API ready timeout must be positive, got: %d", c.APIReadyTimeout)
	}

	return nil
}
