package choromap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/golang/geo/s2"
)

// The boundary layer is pinned to a tagged Natural Earth release at the
// lowest published resolution (1:110m), admin level 0 (countries).
const (
	boundaryVersion = "v5.1.2"
	boundaryURL     = "https://raw.githubusercontent.com/nvkelso/natural-earth-vector/" +
		boundaryVersion + "/geojson/ne_110m_admin_0_countries.geojson"
)

// DefaultCachePath is where the downloaded boundary file lands unless the
// caller overrides it.
const DefaultCachePath = "./choromap-data/ne_110m_admin_0_countries.geojson"

// Ring is a closed sequence of lon/lat vertices. The closing vertex that
// GeoJSON repeats is stripped during parsing.
type Ring [][2]float64

// Boundary is one country outline: one or more polygons, each an outer ring
// followed by its holes.
type Boundary struct {
	ISO3     string
	Name     string
	Polygons [][]Ring
	area     float64 // spherical area in steradians, all outer rings summed
}

// Area returns the spherical area of the boundary in steradians.
func (b Boundary) Area() float64 { return b.area }

// BoundarySet is an ordered collection of country boundaries. Order is the
// dataset's draw order and is stable across loads of the same file. Each
// 3-letter code appears at most once. Safe for concurrent use once built.
type BoundarySet struct {
	boundaries []Boundary
	byISO3     map[string]int
	cellIndex  map[s2.CellID][]int
}

// Len returns the number of boundaries in draw order.
func (bs *BoundarySet) Len() int { return len(bs.boundaries) }

// Codes returns the 3-letter codes in draw order.
func (bs *BoundarySet) Codes() []string {
	codes := make([]string, len(bs.boundaries))
	for i, b := range bs.boundaries {
		codes[i] = b.ISO3
	}
	return codes
}

// At returns the boundary at draw position i.
func (bs *BoundarySet) At(i int) Boundary { return bs.boundaries[i] }

// ByISO3 returns the boundary for a 3-letter code.
func (bs *BoundarySet) ByISO3(code string) (Boundary, bool) {
	i, ok := bs.byISO3[code]
	if !ok {
		return Boundary{}, false
	}
	return bs.boundaries[i], true
}

// Contains reports whether the set has a boundary for the code.
func (bs *BoundarySet) Contains(code string) bool {
	_, ok := bs.byISO3[code]
	return ok
}

// downloadMu protects the boundary download from concurrent first calls that
// would otherwise race on the same cache file.
var downloadMu sync.Mutex

// httpClient is a shared HTTP client with a timeout covering the full
// boundary download.
var httpClient = &http.Client{
	Timeout: 60 * time.Second,
}

// boundarySets memoizes parsed boundary sets per absolute cache path, so
// repeated renders against a warm cache skip disk and parse work.
var boundarySets = gcache.New(4).LRU().Build()

// LoadBoundaries returns the boundary set cached at cachePath, downloading
// the pinned dataset first if the file does not exist. An empty cachePath
// means DefaultCachePath; an empty sourceURL means the pinned upstream URL.
func LoadBoundaries(ctx context.Context, cachePath, sourceURL string) (*BoundarySet, error) {
	if cachePath == "" {
		cachePath = DefaultCachePath
	}
	if sourceURL == "" {
		sourceURL = boundaryURL
	}

	key, err := filepath.Abs(cachePath)
	if err != nil {
		return nil, fmt.Errorf("resolving cache path: %w", err)
	}
	if v, err := boundarySets.Get(key); err == nil {
		return v.(*BoundarySet), nil
	}

	downloadMu.Lock()
	if _, err := os.Stat(cachePath); err != nil {
		if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
			downloadMu.Unlock()
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		if err := downloadFile(ctx, sourceURL, cachePath); err != nil {
			downloadMu.Unlock()
			return nil, fmt.Errorf("downloading boundaries: %w", err)
		}
	}
	downloadMu.Unlock()

	fh, err := os.Open(cachePath)
	if err != nil {
		return nil, fmt.Errorf("opening boundary cache %s: %w", cachePath, err)
	}
	defer fh.Close()

	bs, err := ParseBoundaries(fh)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", cachePath, err)
	}

	// Drop error: the memo is an optimization, the set is already built.
	_ = boundarySets.Set(key, bs)
	return bs, nil
}

func downloadFile(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", url, err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP GET %s: status %d", url, resp.StatusCode)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}

	success := false
	defer func() {
		out.Close()
		if !success {
			os.Remove(path) // best-effort cleanup of partial file
		}
	}()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing file %s: %w", path, err)
	}
	success = true
	return nil
}

// GeoJSON feature decoding. Coordinates stay raw until the geometry type is
// known, then decode into the matching nesting depth.
type geoFeatureCollection struct {
	Type     string       `json:"type"`
	Features []geoFeature `json:"features"`
}

type geoFeature struct {
	Properties map[string]any `json:"properties"`
	Geometry   geoGeometry    `json:"geometry"`
}

type geoGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ParseBoundaries decodes a GeoJSON feature collection of country polygons.
// Features without a usable 3-letter code are skipped, as are codes already
// seen, keeping codes unique per boundary.
func ParseBoundaries(r io.Reader) (*BoundarySet, error) {
	var fc geoFeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decoding GeoJSON: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("unexpected GeoJSON type %q", fc.Type)
	}

	bs := &BoundarySet{byISO3: make(map[string]int, len(fc.Features))}
	for _, f := range fc.Features {
		iso3 := featureISO3(f.Properties)
		if iso3 == "" {
			continue
		}
		if _, dup := bs.byISO3[iso3]; dup {
			continue
		}

		polygons, err := decodePolygons(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", iso3, err)
		}
		if len(polygons) == 0 {
			continue
		}

		b := Boundary{
			ISO3:     iso3,
			Name:     featureName(f.Properties),
			Polygons: polygons,
		}
		for _, poly := range polygons {
			if len(poly) > 0 {
				b.area += ringArea(poly[0])
			}
		}

		bs.byISO3[iso3] = len(bs.boundaries)
		bs.boundaries = append(bs.boundaries, b)
	}
	if len(bs.boundaries) == 0 {
		return nil, fmt.Errorf("no country features found")
	}

	bs.buildCellIndex()
	return bs, nil
}

// featureISO3 extracts the 3-letter code from Natural Earth properties.
// ISO_A3 is "-99" for a handful of disputed entries; ADM0_A3 is the
// dataset's own stable fallback.
func featureISO3(props map[string]any) string {
	for _, key := range []string{"ISO_A3", "ADM0_A3"} {
		if v, ok := props[key].(string); ok && len(v) == 3 && v != "-99" {
			return v
		}
	}
	return ""
}

func featureName(props map[string]any) string {
	for _, key := range []string{"ADMIN", "NAME"} {
		if v, ok := props[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func decodePolygons(g geoGeometry) ([][]Ring, error) {
	switch g.Type {
	case "Polygon":
		var coords [][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("decoding polygon coordinates: %w", err)
		}
		poly := convertRings(coords)
		if poly == nil {
			return nil, nil
		}
		return [][]Ring{poly}, nil
	case "MultiPolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("decoding multipolygon coordinates: %w", err)
		}
		var polys [][]Ring
		for _, p := range coords {
			if poly := convertRings(p); poly != nil {
				polys = append(polys, poly)
			}
		}
		return polys, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}

// convertRings turns raw coordinate arrays into rings, stripping the GeoJSON
// closing vertex. Rings with fewer than 3 distinct vertices are dropped.
func convertRings(coords [][][]float64) []Ring {
	var rings []Ring
	for _, raw := range coords {
		if len(raw) > 1 {
			first, last := raw[0], raw[len(raw)-1]
			if len(first) >= 2 && len(last) >= 2 && first[0] == last[0] && first[1] == last[1] {
				raw = raw[:len(raw)-1]
			}
		}
		ring := make(Ring, 0, len(raw))
		for _, pt := range raw {
			if len(pt) < 2 {
				continue
			}
			ring = append(ring, [2]float64{pt[0], pt[1]})
		}
		if len(ring) >= 3 {
			rings = append(rings, ring)
		}
	}
	return rings
}

// ringLoop builds a normalized s2 loop from a ring. Normalizing picks the
// smaller of the two regions the ring divides the sphere into, which is
// always the right one for country outlines regardless of winding.
func ringLoop(r Ring) *s2.Loop {
	pts := make([]s2.Point, len(r))
	for i, v := range r {
		pts[i] = s2.PointFromLatLng(s2.LatLngFromDegrees(v[1], v[0]))
	}
	loop := s2.LoopFromPoints(pts)
	loop.Normalize()
	return loop
}

func ringArea(r Ring) float64 {
	return ringLoop(r).Area()
}
