package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rkrug/choromap"
)

var (
	renderInput    string
	renderValueCol string
	renderMapType  string
	renderOutput   string
	renderCacheDir string
	renderStyle    string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a choropleth map to PNG",
	Long: `Render reads a CSV table with iso2c/iso3c/name identifier columns and
numeric value columns, and renders the named value column as a filled world
map. Without --input the bundled country table is rendered as a demo.`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderInput, "input", "i", "", "input CSV table (default: bundled demo table)")
	renderCmd.Flags().StringVarP(&renderValueCol, "value-column", "V", "", "value column to plot")
	renderCmd.Flags().StringVarP(&renderMapType, "type", "t", string(choromap.MapTypeCountries), "map type: countries, regions or subregions")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "map.png", "output PNG path")
	renderCmd.Flags().StringVar(&renderCacheDir, "cache", "", "boundary cache file path")
	renderCmd.Flags().StringVar(&renderStyle, "style", "", "YAML style file")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	var data choromap.Table
	if renderInput != "" {
		fh, err := os.Open(renderInput)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		t, err := choromap.ReadTableCSV(fh)
		fh.Close()
		if err != nil {
			return fmt.Errorf("reading %s: %w", renderInput, err)
		}
		if err := t.Validate(renderValueCol); err != nil {
			return fmt.Errorf("invalid input table: %w", err)
		}
		data = t
	}

	opts := []choromap.Option{}
	if renderCacheDir != "" {
		opts = append(opts, choromap.WithCachePath(renderCacheDir))
	}
	if renderStyle != "" {
		style, err := choromap.LoadStyle(renderStyle)
		if err != nil {
			return err
		}
		opts = append(opts, choromap.WithStyle(style))
	}

	m, err := choromap.RenderMap(cmd.Context(), data, renderValueCol, choromap.MapType(renderMapType), opts...)
	if err != nil {
		return err
	}

	if err := m.SavePNG(renderOutput); err != nil {
		return fmt.Errorf("writing %s: %w", renderOutput, err)
	}
	slog.Info("map written", "path", renderOutput)
	return nil
}
