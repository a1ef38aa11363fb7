package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	exportConfigs []string
	exportDate    string
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write ranking snapshots to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "export")
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrap(err, "create output file")
		}
		defer f.Close()

		if err := env.Exporter.WriteReport(ctx, f, exportConfigs, exportDate); err != nil {
			return err
		}
		zap.L().Info("export written",
			zap.String("file", exportOut),
			zap.Strings("configs", exportConfigs),
			zap.String("date", exportDate))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringSliceVar(&exportConfigs, "config", nil, "config ids to export (default all active)")
	exportCmd.Flags().StringVar(&exportDate, "date", "", "period date YYYY-MM-DD (default latest)")
	exportCmd.Flags().StringVar(&exportOut, "out", "rankings.xlsx", "output file")
	rootCmd.AddCommand(exportCmd)
}
