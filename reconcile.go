package choromap

import (
	"log/slog"
	"sort"
)

// ReconciledRow pairs a boundary code with its fill value. HasValue is false
// for polygons the input did not cover.
type ReconciledRow struct {
	ISO3     string
	Value    float64
	HasValue bool
}

// Reconciled is the input table aligned to a boundary set: one row per
// boundary polygon, in draw order. Codes the boundary dataset does not know
// are recorded in Dropped.
type Reconciled struct {
	Rows        []ReconciledRow
	ValueColumn string
	Dropped     []string

	byISO3 map[string]int
}

// Row returns the reconciled row for a boundary code.
func (rec *Reconciled) Row(iso3 string) (ReconciledRow, bool) {
	i, ok := rec.byISO3[iso3]
	if !ok {
		return ReconciledRow{}, false
	}
	return rec.Rows[i], true
}

// Domain returns the min and max of the present values. ok is false when no
// row carries a value.
func (rec *Reconciled) Domain() (lo, hi float64, ok bool) {
	for _, r := range rec.Rows {
		if !r.HasValue {
			continue
		}
		if !ok {
			lo, hi, ok = r.Value, r.Value, true
			continue
		}
		if r.Value < lo {
			lo = r.Value
		}
		if r.Value > hi {
			hi = r.Value
		}
	}
	return lo, hi, ok
}

// Reconcile aligns a normalized table to a boundary set. Input codes absent
// from the boundary dataset are dropped, each with exactly one warning on
// log. Boundary codes absent from the input get valueless rows, so every
// polygon has a row and rec.Rows matches the boundary draw order 1:1.
func Reconcile(t Table, valueColumn string, bs *BoundarySet, log *slog.Logger) *Reconciled {
	if log == nil {
		log = slog.Default()
	}

	values := make(map[string]float64, len(t))
	present := make(map[string]bool, len(t))
	dropped := make(map[string]bool)

	for _, r := range t {
		if r.ISO3 == "" {
			continue // left unresolved by normalization
		}
		if !bs.Contains(r.ISO3) {
			if !dropped[r.ISO3] {
				dropped[r.ISO3] = true
				log.Warn("input code not in boundary dataset, dropping row", "iso3", r.ISO3)
			}
			continue
		}
		present[r.ISO3] = true
		if v, ok := r.Value(valueColumn); ok {
			values[r.ISO3] = v
		}
	}

	rec := &Reconciled{
		Rows:        make([]ReconciledRow, 0, bs.Len()),
		ValueColumn: valueColumn,
		byISO3:      make(map[string]int, bs.Len()),
	}
	for _, code := range bs.Codes() {
		row := ReconciledRow{ISO3: code}
		if present[code] {
			if v, ok := values[code]; ok {
				row.Value = v
				row.HasValue = true
			}
		}
		rec.byISO3[code] = len(rec.Rows)
		rec.Rows = append(rec.Rows, row)
	}

	for code := range dropped {
		rec.Dropped = append(rec.Dropped, code)
	}
	sort.Strings(rec.Dropped)
	return rec
}
