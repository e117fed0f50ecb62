package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recollect-worker/internal/app"
	"recollect-worker/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "recollect-worker",
	Short: "Recollect import and enrichment pipeline",
	Long:  "Drains the Instagram, Raindrop, Twitter, imports and ai-embeddings queues and serves the worker HTTP API.",
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the queue scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return app.Run(cfg)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
