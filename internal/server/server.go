// Package server provides the HTTP backend: a stateless pass-through
// proxy for the upstream price API plus the snapshot/favorites/price-
// cache storage endpoints and the generic local record store.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ekoc/coinfolio/internal/coingecko"
	"github.com/ekoc/coinfolio/internal/config"
	"github.com/ekoc/coinfolio/internal/logger"
	"github.com/ekoc/coinfolio/internal/store"
	"github.com/ekoc/coinfolio/internal/store/filestore"
	"github.com/ekoc/coinfolio/internal/store/mongostore"
)

// Server is the HTTP backend server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	gecko   *coingecko.Client
	store   store.Store
	records *filestore.RecordStore
}

// NewServer creates a configured server with the storage backend the
// config selects.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	var st store.Store
	switch cfg.StoreBackend {
	case config.StoreMongo:
		mongoStore, err := mongostore.New(ctx, mongostore.Options{
			URI:                 cfg.MongoURI,
			Database:            cfg.MongoDB,
			SnapshotCollection:  cfg.SnapshotCollection,
			FavoritesCollection: cfg.FavoritesCollection,
			PriceCacheCol:       cfg.PriceCacheCol,
			HistoryLimit:        cfg.HistoryLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("mongo store setup failed: %w", err)
		}
		st = mongoStore
	case config.StoreFile:
		dataDir, err := cfg.ResolveDataDir()
		if err != nil {
			return nil, err
		}
		fileStore, err := filestore.New(dataDir, cfg.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("file store setup failed: %w", err)
		}
		st = fileStore
	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.StoreBackend)
	}

	dataFile, err := cfg.ResolveDataFile()
	if err != nil {
		return nil, err
	}
	records, err := filestore.NewRecordStore(dataFile)
	if err != nil {
		return nil, fmt.Errorf("record store setup failed: %w", err)
	}

	srv := &Server{
		cfg:     cfg,
		gecko:   coingecko.NewClient(cfg.UpstreamURL, cfg.APIKey),
		store:   st,
		records: records,
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Server listening on http://localhost%s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error: %v", err)
		}
	}()

	<-done
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		return err
	}
	return s.store.Close(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	// Upstream proxy
	r.Get("/api/ping", s.handlePing)
	r.Get("/api/price", s.handlePrice)
	r.Get("/api/search", s.handleSearch)
	r.Get("/api/market-chart", s.handleMarketChart)

	// Storage
	r.Get("/api/balance", s.handleGetBalance)
	r.Post("/api/balance", s.handlePostBalance)
	r.Get("/api/favorites", s.handleGetFavorites)
	r.Post("/api/favorites", s.handlePostFavorites)
	r.Get("/api/price-cache", s.handleGetPriceCache)
	r.Post("/api/price-cache", s.handlePostPriceCache)

	// Generic local record store
	r.Get("/records", s.handleGetRecords)
	r.Post("/records", s.handlePostRecord)
	r.Delete("/records/{id}", s.handleDeleteRecord)

	return r
}
