package main

import (
	"fmt"
	"math"

	"github.com/fogleman/gg"

	"github.com/oncotools/regfusion/dicecheck"
	"github.com/oncotools/regfusion/rigid"
	"github.com/oncotools/regfusion/rtstruct"
)

// Rendering scale in pixels per millimeter.
const overlayScale = 2.0

// renderOverlay draws the primary body outline (white) and the warped
// secondary outline (red) for the middle slice of the primary grid, so a
// human can eyeball what a Dice number means.
func renderOverlay(v *dicecheck.Validator, primary, secondary string, m rigid.Matrix, outName string) error {
	primaryBody, secondaryBody, planes, err := v.Contours(primary, secondary)
	if err != nil {
		return err
	}
	if len(planes.Positions) == 0 {
		return fmt.Errorf("primary series %s has no slice planes", primary)
	}

	middle := planes.Positions[len(planes.Positions)/2]

	primaryRings := ringsNearPlane(primaryBody, planes, rigid.Identity(), middle)
	secondaryRings := ringsNearPlane(secondaryBody, planes, m, middle)
	if len(primaryRings) == 0 && len(secondaryRings) == 0 {
		return fmt.Errorf("no contours near plane %.2f", middle)
	}

	minU, minV, maxU, maxV := bounds(append(append([][][2]float64{}, primaryRings...), secondaryRings...))

	// 10mm margin on every side.
	minU, minV = minU-10, minV-10
	maxU, maxV = maxU+10, maxV+10

	width := int(math.Ceil((maxU - minU) * overlayScale))
	height := int(math.Ceil((maxV - minV) * overlayScale))

	dc := gg.NewContext(width, height)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	drawRings(dc, primaryRings, minU, minV, 1, 1, 1)
	drawRings(dc, secondaryRings, minU, minV, 1, 0.2, 0.2)

	return dc.SavePNG(outName)
}

// ringsNearPlane transforms and projects every ring that buckets onto the
// plane at the given position.
func ringsNearPlane(contours []rtstruct.Contour, planes dicecheck.SlicePlanes, m rigid.Matrix, plane float64) [][][2]float64 {
	var out [][][2]float64

	for _, contour := range contours {
		if len(contour.Points) < 3 {
			continue
		}

		first := m.Apply(contour.Points[0])
		if math.Abs(planes.Geometry.PlanePosition(first)-plane) > planes.Tolerance {
			continue
		}

		ring := make([][2]float64, 0, len(contour.Points))
		for _, p := range contour.Points {
			u, v := planes.Geometry.InPlane(m.Apply(p))
			ring = append(ring, [2]float64{u, v})
		}
		out = append(out, ring)
	}

	return out
}

func bounds(rings [][][2]float64) (minU, minV, maxU, maxV float64) {
	minU, minV = math.Inf(1), math.Inf(1)
	maxU, maxV = math.Inf(-1), math.Inf(-1)

	for _, ring := range rings {
		for _, p := range ring {
			minU = math.Min(minU, p[0])
			minV = math.Min(minV, p[1])
			maxU = math.Max(maxU, p[0])
			maxV = math.Max(maxV, p[1])
		}
	}

	return minU, minV, maxU, maxV
}

func drawRings(dc *gg.Context, rings [][][2]float64, minU, minV, r, g, b float64) {
	dc.SetRGB(r, g, b)
	dc.SetLineWidth(1.5)

	for _, ring := range rings {
		for i, p := range ring {
			x := (p[0] - minU) * overlayScale
			y := (p[1] - minV) * overlayScale
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.ClosePath()
		dc.Stroke()
	}
}
