package choromap

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Record is one row of caller data: a country identified by ISO code (or
// free-text name) plus named numeric value columns.
type Record struct {
	ISO2   string
	ISO3   string
	Name   string
	Values map[string]float64
}

// Value returns the named column value. The second return is false when the
// record carries no value for that column.
func (r Record) Value(column string) (float64, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Table is a caller-supplied set of per-country records. It is never mutated
// by this package; normalization returns a copy.
type Table []Record

// Normalize returns a copy of t in which every record carries a 3-letter
// code where one can be derived: from the record's own ISO3, from ISO2 via
// the code table, or from a fuzzy match on the country name. Records whose
// identifiers resolve to nothing keep an empty ISO3.
func (t Table) Normalize(codes *CountryCodes, log *slog.Logger) Table {
	if log == nil {
		log = slog.Default()
	}

	out := make(Table, len(t))
	for i, r := range t {
		r.ISO2 = strings.ToUpper(strings.TrimSpace(r.ISO2))
		r.ISO3 = strings.ToUpper(strings.TrimSpace(r.ISO3))

		if r.ISO3 == "" && r.ISO2 != "" {
			if iso3, ok := codes.ISO3FromISO2(r.ISO2); ok {
				r.ISO3 = iso3
			} else {
				log.Debug("unknown 2-letter code, leaving row unresolved", "iso2", r.ISO2)
			}
		}
		if r.ISO3 == "" && r.Name != "" {
			if iso3, ok := codes.ResolveName(r.Name); ok {
				r.ISO3 = iso3
			} else {
				log.Debug("could not resolve country name", "name", r.Name)
			}
		}
		out[i] = r
	}
	return out
}

// Validate reports structural problems with the table as a single combined
// error: records with no identifier at all, duplicate 3-letter codes, and
// non-finite values in the named column. A nil result means the table is
// usable as-is.
func (t Table) Validate(valueColumn string) error {
	var result *multierror.Error

	seen := make(map[string]int, len(t))
	for i, r := range t {
		if r.ISO2 == "" && r.ISO3 == "" && r.Name == "" {
			result = multierror.Append(result, fmt.Errorf("row %d: no iso2c, iso3c or name", i))
		}
		if iso3 := strings.ToUpper(strings.TrimSpace(r.ISO3)); iso3 != "" {
			if prev, ok := seen[iso3]; ok {
				result = multierror.Append(result, fmt.Errorf("row %d: duplicate code %s (first at row %d)", i, iso3, prev))
			} else {
				seen[iso3] = i
			}
		}
		if v, ok := r.Value(valueColumn); ok {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				result = multierror.Append(result, fmt.Errorf("row %d: non-finite value %v in column %q", i, v, valueColumn))
			}
		}
	}
	return result.ErrorOrNil()
}

// HasColumn reports whether any record carries a value in the named column.
func (t Table) HasColumn(column string) bool {
	for _, r := range t {
		if _, ok := r.Value(column); ok {
			return true
		}
	}
	return false
}

// Column names recognized as identifiers when reading CSV input. These match
// the column names of the upstream data deliveries.
const (
	columnISO2 = "iso2c"
	columnISO3 = "iso3c"
	columnName = "name"
)

// ReadTableCSV reads caller data from CSV. The header row names the columns;
// iso2c, iso3c and name are identifiers, every other column is parsed as a
// numeric value column. Empty cells become missing values rather than zeros.
func ReadTableCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.ToLower(header[i]))
	}

	var t Table
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		line++

		row := Record{Values: make(map[string]float64)}
		for i, cell := range rec {
			if i >= len(header) {
				break
			}
			cell = strings.TrimSpace(cell)
			switch header[i] {
			case columnISO2:
				row.ISO2 = cell
			case columnISO3:
				row.ISO3 = cell
			case columnName:
				row.Name = cell
			default:
				if cell == "" {
					continue
				}
				v, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: column %q: %w", line, header[i], err)
				}
				row.Values[header[i]] = v
			}
		}
		t = append(t, row)
	}
	if len(t) == 0 {
		return nil, fmt.Errorf("CSV contained no data rows")
	}
	return t, nil
}
