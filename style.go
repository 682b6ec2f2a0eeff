package choromap

import (
	"fmt"
	"image/color"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Style controls the look of a rendered map. Colors are #rrggbb hex strings.
// Palette runs from the low end of the value domain to the high end.
type Style struct {
	Width       int      `yaml:"width"`
	Height      int      `yaml:"height"`
	Background  string   `yaml:"background"`
	Palette     []string `yaml:"palette"`
	MissingFill string   `yaml:"missing_fill"`
	Stroke      string   `yaml:"stroke"`
	StrokeWidth float64  `yaml:"stroke_width"`

	// LegendTitle overrides the default legend title (the value column name).
	LegendTitle string `yaml:"legend_title,omitempty"`
}

// DefaultStyle returns a 2:1 canvas (matching the EPSG:4326 extent) with a
// sequential blue palette.
func DefaultStyle() *Style {
	return &Style{
		Width:       1600,
		Height:      800,
		Background:  "#ffffff",
		Palette:     []string{"#f7fbff", "#c6dbef", "#6baed6", "#2171b5", "#08306b"},
		MissingFill: "#d9d9d9",
		Stroke:      "#666666",
		StrokeWidth: 0.6,
	}
}

// LoadStyle reads a style from a YAML file. Fields left out of the file keep
// their defaults.
func LoadStyle(path string) (*Style, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading style file: %w", err)
	}
	s := DefaultStyle()
	if err := yaml.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("parsing style file %s: %w", path, err)
	}
	return s, nil
}

// Validate reports every problem with the style as a single combined error.
func (s *Style) Validate() error {
	var result *multierror.Error

	if s.Width <= 0 {
		result = multierror.Append(result, fmt.Errorf("width must be positive, got %d", s.Width))
	}
	if s.Height <= 0 {
		result = multierror.Append(result, fmt.Errorf("height must be positive, got %d", s.Height))
	}
	if len(s.Palette) < 2 {
		result = multierror.Append(result, fmt.Errorf("palette needs at least 2 colors, got %d", len(s.Palette)))
	}
	for i, c := range s.Palette {
		if _, err := parseHexColor(c); err != nil {
			result = multierror.Append(result, fmt.Errorf("palette[%d]: %w", i, err))
		}
	}
	for name, c := range map[string]string{
		"background":   s.Background,
		"missing_fill": s.MissingFill,
		"stroke":       s.Stroke,
	} {
		if _, err := parseHexColor(c); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
		}
	}
	if s.StrokeWidth < 0 {
		result = multierror.Append(result, fmt.Errorf("stroke_width must not be negative, got %v", s.StrokeWidth))
	}
	return result.ErrorOrNil()
}

func parseHexColor(s string) (color.RGBA, error) {
	var c color.RGBA
	c.A = 0xff
	if len(s) != 7 || s[0] != '#' {
		return c, fmt.Errorf("invalid color %q, want #rrggbb", s)
	}
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("invalid color %q, want #rrggbb", s)
	}
	return c, nil
}
