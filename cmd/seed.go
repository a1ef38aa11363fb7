package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/rankboard/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the default dimensions, configs and group apps",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "seed")
		if err != nil {
			return err
		}
		defer env.Close()

		return seed.Apply(ctx, env.Store)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
