package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"recollect-worker/internal/app"
	"recollect-worker/internal/telemetry"
)

var drainCmd = &cobra.Command{
	Use:   "drain <queue>",
	Short: "Process a queue until it is empty",
	Long:  "Processes batches of one queue (instagram_imports, raindrop_imports, twitter_imports, imports or ai-embeddings) until no progress is made, then prints the totals.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app.Setup(cfg)
		defer telemetry.Flush(2 * time.Second)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		total, err := a.Drain(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to drain %s: %w", args[0], err)
		}

		logrus.Infof("Drained %s", args[0])
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(total)
	},
}

func init() {
	rootCmd.AddCommand(drainCmd)
}
