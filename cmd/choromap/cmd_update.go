package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rkrug/choromap"
)

var updateDataDir string

var updateCodesCmd = &cobra.Command{
	Use:   "update-codes",
	Short: "Regenerate the country-code table from geonames",
	Long: `Update-codes downloads the geonames country table and rewrites
countrycodes.csv in the data directory. Copy the result over
data/countrycodes.csv to refresh the bundled table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := choromap.RefreshCodes(cmd.Context(), updateDataDir); err != nil {
			return err
		}
		slog.Info("country codes regenerated", "dir", updateDataDir)
		return nil
	},
}

func init() {
	updateCodesCmd.Flags().StringVar(&updateDataDir, "data-dir", "./choromap-data", "directory for downloaded and generated files")
	rootCmd.AddCommand(updateCodesCmd)
}
