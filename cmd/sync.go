package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rankboard/internal/syncer"
)

var syncDate string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Recompute ranking snapshots for all active configs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "sync")
		if err != nil {
			return err
		}
		defer env.Close()

		var results []syncer.Result
		if syncDate != "" {
			results, err = env.Syncer.SyncAllForDate(ctx, syncDate)
		} else {
			results, err = env.Syncer.SyncAll(ctx)
		}
		if err != nil {
			return err
		}

		failed, updated := 0, 0
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
			updated += r.UpdatedCount
		}
		zap.L().Info("sync finished",
			zap.Int("configs", len(results)),
			zap.Int("updated", updated),
			zap.Int("failed", failed))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncDate, "date", "", "period date YYYY-MM-DD (default today)")
	rootCmd.AddCommand(syncCmd)
}
