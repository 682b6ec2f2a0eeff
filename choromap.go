// Package choromap renders world choropleth maps from per-country value
// tables.
//
// The entry point is RenderMap: it normalizes the caller's ISO country
// codes, loads the pinned world boundary dataset (downloading and caching it
// on first use), reconciles the table against the boundary polygons, and
// renders one filled-polygon layer in geographic coordinates (EPSG:4326).
//
//	m, err := choromap.RenderMap(ctx, table, "citations", choromap.MapTypeCountries)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	m.SavePNG("map.png")
//
// Input codes the boundary dataset does not know are dropped with a warning;
// boundary polygons the input does not cover render in the missing-value
// fill. Either a complete map comes back or an error, never a partial one.
package choromap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// MapType selects the administrative level of the rendered map. The set is
// closed: countries is implemented, regions and subregions are reserved.
type MapType string

const (
	MapTypeCountries  MapType = "countries"
	MapTypeRegions    MapType = "regions"    // reserved
	MapTypeSubregions MapType = "subregions" // reserved
)

var (
	// ErrInvalidMapType is returned for map types outside the closed set,
	// before any data is loaded.
	ErrInvalidMapType = errors.New("choromap: invalid map type")

	// ErrMapTypeReserved is returned for the regions and subregions map
	// types, which are recognized but not yet renderable.
	ErrMapTypeReserved = errors.New("choromap: map type reserved for a future release")
)

// Known reports whether t is a member of the closed map-type set.
func (t MapType) Known() bool {
	switch t {
	case MapTypeCountries, MapTypeRegions, MapTypeSubregions:
		return true
	}
	return false
}

// Reserved reports whether t is recognized but not yet renderable.
func (t MapType) Reserved() bool {
	return t == MapTypeRegions || t == MapTypeSubregions
}

// DefaultValueColumn is the value column used when the caller supplies no
// data: the ISO numeric code of the bundled country table.
const DefaultValueColumn = "numeric"

// Config collects the knobs of a RenderMap call. Zero values mean the
// bundled defaults.
type Config struct {
	CachePath string        // boundary cache file (default DefaultCachePath)
	SourceURL string        // boundary download URL (default: pinned upstream)
	Codes     *CountryCodes // reference code table (default: bundled)
	Logger    *slog.Logger  // warning channel (default slog.Default)
	Style     *Style        // render style (default DefaultStyle)
}

// Option is a functional option for RenderMap.
type Option func(*Config)

// WithCachePath sets the boundary cache file path.
func WithCachePath(path string) Option {
	return func(c *Config) { c.CachePath = path }
}

// WithSourceURL overrides the boundary download URL. Meant for tests and
// mirrors; the default is pinned to a tagged upstream release.
func WithSourceURL(url string) Option {
	return func(c *Config) { c.SourceURL = url }
}

// WithCodes injects a country-code reference table in place of the bundled
// one.
func WithCodes(codes *CountryCodes) Option {
	return func(c *Config) { c.Codes = codes }
}

// WithLogger directs warnings to the given logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Config) { c.Logger = log }
}

// WithStyle sets the render style.
func WithStyle(style *Style) Option {
	return func(c *Config) { c.Style = style }
}

// RenderMap renders a choropleth of valueColumn over data. A nil or empty
// data table renders the bundled country table instead, with a warning. The
// boundary dataset is downloaded to the cache path on first use; later calls
// read the cached file and perform no network I/O.
func RenderMap(ctx context.Context, data Table, valueColumn string, mapType MapType, opts ...Option) (*Map, error) {
	// Capability checks come first: no data loading, no I/O before them.
	if !mapType.Known() {
		return nil, fmt.Errorf("%w: %q (want countries, regions or subregions)", ErrInvalidMapType, string(mapType))
	}
	if mapType.Reserved() {
		return nil, fmt.Errorf("%w: %q", ErrMapTypeReserved, string(mapType))
	}

	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	codes := cfg.Codes
	if codes == nil {
		var err error
		codes, err = DefaultCodes()
		if err != nil {
			return nil, fmt.Errorf("loading bundled country codes: %w", err)
		}
	}

	if len(data) == 0 {
		log.Warn("no data supplied, rendering bundled country table",
			"value_column", DefaultValueColumn)
		data = codes.DefaultTable()
		valueColumn = DefaultValueColumn
	}
	if valueColumn == "" {
		log.Warn("no value column named, using default", "value_column", DefaultValueColumn)
		valueColumn = DefaultValueColumn
	}
	if !data.HasColumn(valueColumn) {
		log.Warn("value column absent from all rows, polygons will render as missing",
			"value_column", valueColumn)
	}

	normalized := data.Normalize(codes, log)

	boundaries, err := LoadBoundaries(ctx, cfg.CachePath, cfg.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("loading world boundaries: %w", err)
	}

	reconciled := Reconcile(normalized, valueColumn, boundaries, log)

	m, err := Render(boundaries, reconciled, cfg.Style)
	if err != nil {
		return nil, fmt.Errorf("rendering map: %w", err)
	}
	return m, nil
}
