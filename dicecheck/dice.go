package dicecheck

import (
	"math"
	"sort"

	polyclip "github.com/ctessum/polyclip-go"

	"github.com/oncotools/regfusion/dicomgeom"
	"github.com/oncotools/regfusion/rigid"
	"github.com/oncotools/regfusion/rtstruct"
)

// Result is the overlap measurement for one matched slice pair.
type Result struct {
	SliceZ           float64 `json:"sliceZ" csv:"slice_z"`
	Dice             float64 `json:"dice" csv:"dice"`
	AreaPrimary      float64 `json:"areaPrimary" csv:"area_primary"`
	AreaSecondary    float64 `json:"areaSecondary" csv:"area_secondary"`
	AreaIntersection float64 `json:"areaIntersection" csv:"area_intersection"`
}

// SlicePlanes is the primary series' slice grid: sorted plane positions along
// the slice normal plus the bucketing tolerance derived from slice spacing.
// Stored contour positions drift by fractions of a millimeter, so exact
// matching would drop slices arbitrarily.
type SlicePlanes struct {
	Geometry  *dicomgeom.SeriesGeometry
	Positions []float64
	Tolerance float64
}

// NewSlicePlanes sorts the positions and derives the tolerance as half the
// median inter-slice spacing. A single-slice series falls back to 0.5mm.
func NewSlicePlanes(g *dicomgeom.SeriesGeometry, positions []float64) SlicePlanes {
	sorted := append([]float64{}, positions...)
	sort.Float64s(sorted)

	tol := 0.5
	if len(sorted) > 1 {
		gaps := make([]float64, 0, len(sorted)-1)
		for i := 1; i < len(sorted); i++ {
			gaps = append(gaps, sorted[i]-sorted[i-1])
		}
		sort.Float64s(gaps)
		if median := gaps[len(gaps)/2]; median > 0 {
			tol = median / 2
		}
	}

	return SlicePlanes{Geometry: g, Positions: sorted, Tolerance: tol}
}

// nearest returns the index of the closest plane within tolerance.
func (p SlicePlanes) nearest(position float64) (int, bool) {
	if len(p.Positions) == 0 {
		return 0, false
	}

	i := sort.SearchFloat64s(p.Positions, position)
	best, bestDist := -1, math.Inf(1)
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(p.Positions) {
			continue
		}
		if d := math.Abs(p.Positions[j] - position); d < bestDist {
			best, bestDist = j, d
		}
	}

	if best < 0 || bestDist > p.Tolerance {
		return 0, false
	}
	return best, true
}

// PairDice transforms the secondary contours with m, buckets both contour
// sets onto the primary slice grid, and scores polygon overlap per slice.
// Slices where neither side has a contour produce no row.
func PairDice(primary, secondary []rtstruct.Contour, planes SlicePlanes, m rigid.Matrix) []Result {
	primaryBySlice := bucketContours(primary, planes, rigid.Identity())
	secondaryBySlice := bucketContours(secondary, planes, m)

	indices := make(map[int]bool)
	for i := range primaryBySlice {
		indices[i] = true
	}
	for i := range secondaryBySlice {
		indices[i] = true
	}

	sorted := make([]int, 0, len(indices))
	for i := range indices {
		sorted = append(sorted, i)
	}
	sort.Ints(sorted)

	var out []Result
	for _, i := range sorted {
		a := primaryBySlice[i]
		b := secondaryBySlice[i]

		areaA := polygonArea(a)
		areaB := polygonArea(b)
		if areaA == 0 && areaB == 0 {
			continue
		}

		var inter float64
		if len(a) > 0 && len(b) > 0 {
			inter = polygonArea(a.Construct(polyclip.INTERSECTION, b))
		}

		out = append(out, Result{
			SliceZ:           planes.Positions[i],
			Dice:             2 * inter / (areaA + areaB),
			AreaPrimary:      areaA,
			AreaSecondary:    areaB,
			AreaIntersection: inter,
		})
	}

	return out
}

// bucketContours assigns each transformed ring to the nearest slice plane and
// projects it into the shared in-plane coordinate system.
func bucketContours(contours []rtstruct.Contour, planes SlicePlanes, m rigid.Matrix) map[int]polyclip.Polygon {
	out := make(map[int]polyclip.Polygon)

	for _, contour := range contours {
		if len(contour.Points) < 3 {
			continue
		}

		first := m.Apply(contour.Points[0])
		slice, ok := planes.nearest(planes.Geometry.PlanePosition(first))
		if !ok {
			continue
		}

		ring := make(polyclip.Contour, 0, len(contour.Points))
		for _, p := range contour.Points {
			u, v := planes.Geometry.InPlane(m.Apply(p))
			ring = append(ring, polyclip.Point{X: u, Y: v})
		}

		out[slice] = append(out[slice], ring)
	}

	return out
}

// polygonArea sums signed ring areas (shoelace) and returns the absolute
// value, so holes emitted by the clipper with opposite winding subtract.
func polygonArea(p polyclip.Polygon) float64 {
	var total float64
	for _, ring := range p {
		total += signedArea(ring)
	}
	return math.Abs(total)
}

func signedArea(ring polyclip.Contour) float64 {
	if len(ring) < 3 {
		return 0
	}

	var sum float64
	for i := range ring {
		j := (i + 1) % len(ring)
		sum += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}
	return sum / 2
}
