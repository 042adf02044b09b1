package dicecheck

import (
	"math"
	"testing"

	"github.com/oncotools/regfusion/dicomgeom"
	"github.com/oncotools/regfusion/rigid"
	"github.com/oncotools/regfusion/rtstruct"
)

func axialGeometry(t *testing.T) *dicomgeom.SeriesGeometry {
	t.Helper()
	g, err := dicomgeom.New("F1", []float64{1, 0, 0, 0, 1, 0}, []float64{0, 0, 0}, []float64{1, 1})
	if err != nil {
		t.Fatalf("geometry: %v", err)
	}
	return g
}

// square returns one axial square ring of the given half-width centered at
// (cx, cy) on slice z.
func square(cx, cy, z, half float64) rtstruct.Contour {
	return rtstruct.Contour{Points: [][3]float64{
		{cx - half, cy - half, z},
		{cx + half, cy - half, z},
		{cx + half, cy + half, z},
		{cx - half, cy + half, z},
	}}
}

func translation(dx, dy, dz float64) rigid.Matrix {
	m := rigid.Identity()
	m[3], m[7], m[11] = dx, dy, dz
	return m
}

func bodyOnPlanes(planes []float64) []rtstruct.Contour {
	var out []rtstruct.Contour
	for _, z := range planes {
		out = append(out, square(0, 0, z, 50))
	}
	return out
}

func TestIdenticalContoursUnderIdentityScorePerfectly(t *testing.T) {
	positions := []float64{0, 3, 6, 9}
	planes := NewSlicePlanes(axialGeometry(t), positions)
	body := bodyOnPlanes(positions)

	results := PairDice(body, body, planes, rigid.Identity())
	if len(results) != len(positions) {
		t.Fatalf("got %d slice results, want %d", len(results), len(positions))
	}
	for _, r := range results {
		if math.Abs(r.Dice-1) > 1e-9 {
			t.Errorf("slice %g: Dice = %g, want 1", r.SliceZ, r.Dice)
		}
		if math.Abs(r.AreaIntersection-10000) > 1e-6 {
			t.Errorf("slice %g: intersection area = %g, want 10000", r.SliceZ, r.AreaIntersection)
		}
	}
}

func TestDiceFallsMonotonicallyWithTranslationError(t *testing.T) {
	positions := []float64{0, 3, 6}
	planes := NewSlicePlanes(axialGeometry(t), positions)
	body := bodyOnPlanes(positions)

	prev := math.Inf(1)
	for _, shift := range []float64{0, 10, 25, 50, 80} {
		results := PairDice(body, body, planes, translation(shift, 0, 0))
		sum := Summarize(VariantRaw, results)
		if sum.MeanDice >= prev && shift > 0 {
			t.Fatalf("mean Dice did not fall: %g at shift %g (previous %g)", sum.MeanDice, shift, prev)
		}
		prev = sum.MeanDice
	}

	// A shift past the square's width leaves no overlap at all.
	results := PairDice(body, body, planes, translation(150, 0, 0))
	for _, r := range results {
		if r.Dice != 0 {
			t.Fatalf("disjoint squares scored Dice %g on slice %g", r.Dice, r.SliceZ)
		}
	}
}

func TestOutOfPlaneShiftMovesContoursBetweenSlices(t *testing.T) {
	positions := []float64{0, 3, 6}
	planes := NewSlicePlanes(axialGeometry(t), positions)
	body := bodyOnPlanes(positions)

	// Shifting exactly one slice spacing re-buckets each ring onto its
	// neighbor; the top ring falls off the grid.
	results := PairDice(body, body, planes, translation(0, 0, 3))
	for _, r := range results {
		switch r.SliceZ {
		case 0:
			if r.AreaSecondary != 0 {
				t.Errorf("slice 0 kept a warped ring (area %g)", r.AreaSecondary)
			}
		case 3, 6:
			if math.Abs(r.Dice-1) > 1e-9 {
				t.Errorf("slice %g: Dice = %g, want 1 after re-bucketing", r.SliceZ, r.Dice)
			}
		}
	}

	// A shift past the end of the grid drops every ring.
	results = PairDice(nil, body, planes, translation(0, 0, 100))
	if len(results) != 0 {
		t.Fatalf("off-grid rings still produced %d rows", len(results))
	}
}

func TestSlicePlanesTolerance(t *testing.T) {
	planes := NewSlicePlanes(axialGeometry(t), []float64{0, 2.5, 5, 7.5})
	if math.Abs(planes.Tolerance-1.25) > 1e-9 {
		t.Fatalf("tolerance = %g, want half the 2.5mm spacing", planes.Tolerance)
	}

	single := NewSlicePlanes(axialGeometry(t), []float64{12})
	if single.Tolerance != 0.5 {
		t.Fatalf("single-slice tolerance = %g, want 0.5 fallback", single.Tolerance)
	}

	if _, ok := planes.nearest(2.4); !ok {
		t.Fatal("position within tolerance not matched")
	}
	if _, ok := planes.nearest(3.8); ok {
		t.Fatal("position outside tolerance matched a plane")
	}
}

func TestVariantApply(t *testing.T) {
	m := translation(5, -2, 8)

	tests := []struct {
		variant Variant
		want    rigid.Matrix
	}{
		{VariantRaw, m},
		{Variant(""), m},
		{VariantTransposed, rigid.TransposeVariant(m)},
		{VariantInverted, rigid.Invert(m)},
		{VariantInvertedTransposed, rigid.Invert(rigid.TransposeVariant(m))},
	}
	for _, tt := range tests {
		got, err := Apply(m, tt.variant)
		if err != nil {
			t.Fatalf("Apply(%q): %v", tt.variant, err)
		}
		if rigid.Distance(got, tt.want) > 1e-12 {
			t.Errorf("Apply(%q) produced the wrong reading", tt.variant)
		}
	}

	if _, err := Apply(m, Variant("mirrored")); err == nil {
		t.Fatal("unknown variant accepted")
	}
}

func TestSummarizePassCounting(t *testing.T) {
	results := []Result{
		{SliceZ: 0, Dice: 1.0},
		{SliceZ: 3, Dice: 0.99},
		{SliceZ: 6, Dice: 0.95},
		{SliceZ: 9, Dice: 0.70},
	}

	sum := Summarize(VariantInverted, results)
	if sum.Variant != VariantInverted {
		t.Fatalf("variant = %q", sum.Variant)
	}
	if sum.Passed != 2 || sum.SliceCount != 4 {
		t.Fatalf("passed %d of %d, want 2 of 4", sum.Passed, sum.SliceCount)
	}
	if math.Abs(sum.PassFraction-0.5) > 1e-12 {
		t.Fatalf("pass fraction = %g", sum.PassFraction)
	}
	if sum.MinDice != 0.70 {
		t.Fatalf("min Dice = %g", sum.MinDice)
	}
	if math.Abs(sum.MeanDice-0.91) > 1e-12 {
		t.Fatalf("mean Dice = %g", sum.MeanDice)
	}

	empty := Summarize(VariantRaw, nil)
	if empty.SliceCount != 0 || empty.MeanDice != 0 {
		t.Fatalf("empty summary not zeroed: %+v", empty)
	}
}
