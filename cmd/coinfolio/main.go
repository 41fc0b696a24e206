package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ekoc/coinfolio/internal/config"
	"github.com/ekoc/coinfolio/internal/logger"
	"github.com/ekoc/coinfolio/internal/server"
	"github.com/ekoc/coinfolio/internal/services"
	"github.com/ekoc/coinfolio/internal/tui"
	"github.com/ekoc/coinfolio/internal/utils"
)

func main() {
	utils.LoadEnvironment()

	cfg := config.NewConfig()
	cfg.LoadFromEnvironment()

	rootCmd := &cobra.Command{
		Use:   "coinfolio",
		Short: "A personal cryptocurrency portfolio tracker",
		Long:  `coinfolio tracks a personal cryptocurrency portfolio: a backend that proxies the market data API and stores snapshots, and a terminal tracker that watches prices and values holdings.`,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the backend API server",
		Run: func(cmd *cobra.Command, args []string) {
			logger.Init()

			if err := cfg.Validate(); err != nil {
				logger.Fatal("Invalid configuration: %v", err)
			}

			srv, err := server.NewServer(context.Background(), cfg)
			if err != nil {
				logger.Fatal("Failed to initialize server: %v", err)
			}

			if err := srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Port)); err != nil {
				logger.Fatal("Server stopped: %v", err)
			}
		},
	}

	trackCmd := &cobra.Command{
		Use:   "track",
		Short: "Run the terminal portfolio tracker",
		Run: func(cmd *cobra.Command, args []string) {
			// logs go to file only so they do not tear the TUI
			if err := logger.InitFileOnly(); err != nil {
				fmt.Printf("Failed to initialize logger: %v\n", err)
				return
			}
			defer logger.Close()

			if err := cfg.Validate(); err != nil {
				logger.Fatal("Invalid configuration: %v", err)
			}
			cfg.SetBaseURL()

			tracker, err := services.NewTrackerService(cfg)
			if err != nil {
				logger.Fatal("Failed to initialize tracker: %v", err)
			}

			if !tracker.WaitForAPIReady(cfg.APIReadyTimeout) {
				logger.Fatal("Backend at %s did not become ready", cfg.BaseURL)
			}

			monitor := tui.NewTrackerMonitor(tracker)
			if err := monitor.Run(context.Background()); err != nil {
				logger.Fatal("Tracker failed: %v", err)
			}
		},
	}

	serveCmd.Flags().IntVarP(&cfg.Port, "port", "p", cfg.Port, "Port to listen on")
	serveCmd.Flags().StringVarP(&cfg.UpstreamURL, "upstream", "u", cfg.UpstreamURL, "Market data API base URL")
	serveCmd.Flags().StringVarP(&cfg.StoreBackend, "store", "s", cfg.StoreBackend, "Storage backend (file or mongo)")
	serveCmd.Flags().StringVarP(&cfg.DataDir, "data-dir", "", cfg.DataDir, "Directory for file-backed storage (default: ~/.coinfolio)")
	serveCmd.Flags().IntVarP(&cfg.HistoryLimit, "history-limit", "", cfg.HistoryLimit, "Number of snapshots to retain")

	trackCmd.Flags().StringVarP(&cfg.BaseURL, "base-url", "b", cfg.BaseURL, "Backend base URL (default: http://localhost:<port>)")
	trackCmd.Flags().IntVarP(&cfg.APIReadyTimeout, "api-ready-timeout", "t", cfg.APIReadyTimeout, "Maximum attempts to check backend readiness")
	trackCmd.Flags().StringVarP(&cfg.DataDir, "data-dir", "", cfg.DataDir, "Directory for the local cache (default: ~/.coinfolio)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trackCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("Failed to execute command: %v", err)
	}
}
