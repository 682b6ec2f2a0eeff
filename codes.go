package choromap

import (
	"bufio"
	"context"
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

//go:embed data/countrycodes.csv
var bundledData embed.FS

// countryInfoURL is the geonames country table used by RefreshCodes to rebuild
// the code table from upstream data.
const countryInfoURL = "https://download.geonames.org/export/dump/countryInfo.txt"

// Country is one row of the reference code table.
type Country struct {
	ISO2      string // ISO 3166-1 alpha-2 code (e.g., "DE")
	ISO3      string // ISO 3166-1 alpha-3 code (e.g., "DEU")
	Numeric   int    // ISO 3166-1 numeric code (e.g., 276)
	Name      string
	Region    string // UN region (e.g., "Europe")
	Subregion string // UN subregion (e.g., "Western Europe")
}

// CountryCodes is an immutable lookup table over ISO 3166 country codes.
// It also carries the region/subregion columns used by the reserved
// regions/subregions map types. Safe for concurrent use.
type CountryCodes struct {
	countries []Country
	byISO2    map[string]int
	byISO3    map[string]int
}

// NewCountryCodes builds a lookup table from the given rows. Rows with an
// empty ISO3 code are skipped; on duplicate codes the first row wins.
func NewCountryCodes(countries []Country) *CountryCodes {
	c := &CountryCodes{
		byISO2: make(map[string]int, len(countries)),
		byISO3: make(map[string]int, len(countries)),
	}
	for _, co := range countries {
		co.ISO2 = strings.ToUpper(co.ISO2)
		co.ISO3 = strings.ToUpper(co.ISO3)
		if co.ISO3 == "" {
			continue
		}
		if _, ok := c.byISO3[co.ISO3]; ok {
			continue
		}
		c.byISO3[co.ISO3] = len(c.countries)
		if co.ISO2 != "" {
			if _, ok := c.byISO2[co.ISO2]; !ok {
				c.byISO2[co.ISO2] = len(c.countries)
			}
		}
		c.countries = append(c.countries, co)
	}
	return c
}

// defaultCodes parses the embedded table once; every DefaultCodes caller
// shares the same instance, like the embedded cache in the data downloader.
var defaultCodes = sync.OnceValues(func() (*CountryCodes, error) {
	fh, err := bundledData.Open("data/countrycodes.csv")
	if err != nil {
		return nil, fmt.Errorf("opening bundled country codes: %w", err)
	}
	defer fh.Close()
	return ParseCodesCSV(fh)
})

// DefaultCodes returns the bundled ISO 3166 code table.
func DefaultCodes() (*CountryCodes, error) {
	return defaultCodes()
}

// ParseCodesCSV reads a code table in the bundled CSV layout:
// iso2,iso3,numeric,name,region,subregion with a header row.
func ParseCodesCSV(r io.Reader) (*CountryCodes, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading country code CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("country code CSV has no data rows")
	}

	countries := make([]Country, 0, len(records)-1)
	for _, rec := range records[1:] {
		num, _ := strconv.Atoi(rec[2]) // numeric code 0 is acceptable
		countries = append(countries, Country{
			ISO2:      rec[0],
			ISO3:      rec[1],
			Numeric:   num,
			Name:      rec[3],
			Region:    rec[4],
			Subregion: rec[5],
		})
	}
	return NewCountryCodes(countries), nil
}

// Len returns the number of countries in the table.
func (c *CountryCodes) Len() int { return len(c.countries) }

// Countries returns a copy of all rows in table order.
func (c *CountryCodes) Countries() []Country {
	out := make([]Country, len(c.countries))
	copy(out, c.countries)
	return out
}

// ISO3FromISO2 converts a 2-letter code to its 3-letter equivalent.
func (c *CountryCodes) ISO3FromISO2(iso2 string) (string, bool) {
	i, ok := c.byISO2[strings.ToUpper(strings.TrimSpace(iso2))]
	if !ok {
		return "", false
	}
	return c.countries[i].ISO3, true
}

// Lookup returns the full row for a 3-letter code.
func (c *CountryCodes) Lookup(iso3 string) (Country, bool) {
	i, ok := c.byISO3[strings.ToUpper(strings.TrimSpace(iso3))]
	if !ok {
		return Country{}, false
	}
	return c.countries[i], true
}

// maxNameDistance caps the edit distance accepted by ResolveName. Larger
// distances start matching unrelated country names.
const maxNameDistance = 2

// ResolveName maps a free-text country name to a 3-letter code. Exact
// case-insensitive matches win; otherwise the unique name within edit
// distance maxNameDistance is used. Ambiguous or distant names resolve
// to nothing.
func (c *CountryCodes) ResolveName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}

	for _, co := range c.countries {
		if strings.EqualFold(name, co.Name) {
			return co.ISO3, true
		}
	}

	best := ""
	bestDist := maxNameDistance + 1
	ambiguous := false
	lower := strings.ToLower(name)
	for _, co := range c.countries {
		d := levenshtein.ComputeDistance(lower, strings.ToLower(co.Name))
		switch {
		case d < bestDist:
			best = co.ISO3
			bestDist = d
			ambiguous = false
		case d == bestDist:
			ambiguous = true
		}
	}
	if best == "" || ambiguous || bestDist > maxNameDistance {
		return "", false
	}
	return best, true
}

// DefaultTable returns the bundled table as caller data, used when RenderMap
// is invoked without input. The numeric ISO code serves as the demo value
// column.
func (c *CountryCodes) DefaultTable() Table {
	t := make(Table, 0, len(c.countries))
	for _, co := range c.countries {
		t = append(t, Record{
			ISO2:   co.ISO2,
			ISO3:   co.ISO3,
			Name:   co.Name,
			Values: map[string]float64{DefaultValueColumn: float64(co.Numeric)},
		})
	}
	return t
}

// WriteCSV writes the table in the bundled CSV layout, sorted by ISO3 so
// regenerated files diff cleanly.
func (c *CountryCodes) WriteCSV(w io.Writer) error {
	rows := c.Countries()
	sort.Slice(rows, func(i, j int) bool { return rows[i].ISO3 < rows[j].ISO3 })

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"iso2", "iso3", "numeric", "name", "region", "subregion"}); err != nil {
		return err
	}
	for _, co := range rows {
		rec := []string{
			co.ISO2,
			co.ISO3,
			fmt.Sprintf("%03d", co.Numeric),
			co.Name,
			co.Region,
			co.Subregion,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// continentRegions maps geonames continent codes to UN region names.
var continentRegions = map[string]string{
	"AF": "Africa",
	"AN": "Antarctica",
	"AS": "Asia",
	"EU": "Europe",
	"NA": "Americas",
	"OC": "Oceania",
	"SA": "Americas",
}

// ParseGeonamesCountryInfo reads the tab-separated geonames countryInfo.txt
// format. Comment lines start with '#'. Subregions are not present in the
// geonames table and are filled from the bundled table when available.
func ParseGeonamesCountryInfo(r io.Reader) (*CountryCodes, error) {
	bundled, err := DefaultCodes()
	if err != nil {
		return nil, err
	}

	var countries []Country
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		t := scanner.Text()
		if len(t) == 0 || t[0] == '#' {
			continue
		}

		fields := strings.SplitN(t, "\t", 19)
		if len(fields) != 19 || fields[0] == "" {
			continue
		}

		num, _ := strconv.Atoi(fields[2])
		co := Country{
			ISO2:    fields[0],
			ISO3:    fields[1],
			Numeric: num,
			Name:    fields[4],
			Region:  continentRegions[fields[8]],
		}
		if prev, ok := bundled.Lookup(co.ISO3); ok {
			co.Subregion = prev.Subregion
		}
		countries = append(countries, co)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning country info: %w", err)
	}
	if len(countries) == 0 {
		return nil, fmt.Errorf("country info contained no usable rows")
	}
	return NewCountryCodes(countries), nil
}

// RefreshCodes downloads the geonames country table into dataDir and rewrites
// dataDir/countrycodes.csv from it. The rewritten file can then replace the
// bundled copy under data/.
func RefreshCodes(ctx context.Context, dataDir string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	rawPath := filepath.Join(dataDir, "countryInfo.txt")
	if err := downloadFile(ctx, countryInfoURL, rawPath); err != nil {
		return fmt.Errorf("downloading country info: %w", err)
	}

	fh, err := os.Open(rawPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", rawPath, err)
	}
	defer fh.Close()

	codes, err := ParseGeonamesCountryInfo(fh)
	if err != nil {
		return err
	}

	out, err := os.Create(filepath.Join(dataDir, "countrycodes.csv"))
	if err != nil {
		return fmt.Errorf("creating codes CSV: %w", err)
	}
	defer out.Close()

	if err := codes.WriteCSV(out); err != nil {
		return fmt.Errorf("writing codes CSV: %w", err)
	}
	return out.Close()
}
