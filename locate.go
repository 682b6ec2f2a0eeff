package choromap

import (
	"math"

	"github.com/golang/geo/s2"
)

// locateCellLevel determines the granularity of the S2 index used by Locate.
// Level 6 cells are roughly 100km on a side, coarse enough that even large
// countries stay within the coverer's cell budget while keeping candidate
// lists short for point queries.
const locateCellLevel = 6

// buildCellIndex maps S2 cells to the boundaries whose outer rings they may
// intersect. Coverings are supersets, so Locate verifies candidates with an
// exact containment test.
func (bs *BoundarySet) buildCellIndex() {
	bs.cellIndex = make(map[s2.CellID][]int)
	coverer := &s2.RegionCoverer{
		MinLevel: locateCellLevel,
		MaxLevel: locateCellLevel,
		MaxCells: 512,
	}
	for i, b := range bs.boundaries {
		seen := make(map[s2.CellID]bool)
		for _, poly := range b.Polygons {
			if len(poly) == 0 {
				continue
			}
			for _, cell := range coverer.Covering(ringLoop(poly[0])) {
				if seen[cell] {
					continue
				}
				seen[cell] = true
				bs.cellIndex[cell] = append(bs.cellIndex[cell], i)
			}
		}
	}
}

// Locate returns the 3-letter code of the country containing the given
// coordinates. Enclaves resolve to the smallest containing boundary. Points
// in open water or with non-finite coordinates return ok=false.
func (bs *BoundarySet) Locate(lat, lng float64) (string, bool) {
	if math.IsNaN(lat) || math.IsNaN(lng) ||
		math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return "", false
	}

	p := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lng))
	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lng)).Parent(locateCellLevel)

	bestIdx := -1
	for _, i := range bs.cellIndex[cell] {
		if !bs.boundaries[i].containsPoint(p) {
			continue
		}
		if bestIdx < 0 || bs.boundaries[i].area < bs.boundaries[bestIdx].area {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return "", false
	}
	return bs.boundaries[bestIdx].ISO3, true
}

// containsPoint tests the point against each polygon: inside the outer ring
// and outside every hole.
func (b Boundary) containsPoint(p s2.Point) bool {
	for _, poly := range b.Polygons {
		if len(poly) == 0 || !ringLoop(poly[0]).ContainsPoint(p) {
			continue
		}
		inHole := false
		for _, hole := range poly[1:] {
			if ringLoop(hole).ContainsPoint(p) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}
