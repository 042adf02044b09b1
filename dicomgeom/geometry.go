// Package dicomgeom extracts the per-image spatial attributes the fusion
// pipeline depends on: frame-of-reference UID, direction cosines, origin, and
// pixel spacing. Geometry is derived on demand from one representative image
// of a series and is not cached between requests.
package dicomgeom

import (
	"fmt"
	"math"

	"github.com/carbocation/pfx"
	"github.com/suyashkumar/dicom/dicomtag"

	"github.com/oncotools/regfusion/dicomio"
)

// SeriesGeometry describes the spatial placement of one image plane.
type SeriesGeometry struct {
	FrameOfReferenceUID string
	RowDirection        [3]float64
	ColDirection        [3]float64
	Origin              [3]float64
	PixelSpacing        [2]float64
	Rows                int
	Cols                int
}

// New validates raw geometry attributes into a SeriesGeometry. The row and
// column direction cosines must yield a unit-length slice normal; degenerate
// orientations are an error, never a silent default.
func New(frameUID string, orientation, origin []float64, spacing []float64) (*SeriesGeometry, error) {
	if len(orientation) != 6 {
		return nil, pfx.Err(fmt.Errorf("dicomgeom: orientation has %d values, expected 6", len(orientation)))
	}
	if len(origin) != 3 {
		return nil, pfx.Err(fmt.Errorf("dicomgeom: origin has %d values, expected 3", len(origin)))
	}
	if len(spacing) != 2 {
		return nil, pfx.Err(fmt.Errorf("dicomgeom: pixel spacing has %d values, expected 2", len(spacing)))
	}

	g := &SeriesGeometry{
		FrameOfReferenceUID: frameUID,
		RowDirection:        [3]float64{orientation[0], orientation[1], orientation[2]},
		ColDirection:        [3]float64{orientation[3], orientation[4], orientation[5]},
		Origin:              [3]float64{origin[0], origin[1], origin[2]},
		PixelSpacing:        [2]float64{spacing[0], spacing[1]},
	}

	n := cross(g.RowDirection, g.ColDirection)
	if l := norm(n); math.Abs(l-1) > 1e-3 {
		return nil, pfx.Err(fmt.Errorf("dicomgeom: direction cosines yield slice normal of length %g, not unit", l))
	}

	return g, nil
}

// Normal returns the unit slice normal (row x col).
func (g *SeriesGeometry) Normal() [3]float64 {
	n := cross(g.RowDirection, g.ColDirection)
	l := norm(n)
	return [3]float64{n[0] / l, n[1] / l, n[2] / l}
}

// PlanePosition projects a world point onto the slice normal. Two points on
// the same image plane share a plane position.
func (g *SeriesGeometry) PlanePosition(p [3]float64) float64 {
	return dot(g.Normal(), p)
}

// InPlane maps a world point to 2-D in-plane millimeter coordinates along the
// row and column directions. The mapping is shared by every plane of the
// series, so overlap areas computed in it are physically meaningful.
func (g *SeriesGeometry) InPlane(p [3]float64) (u, v float64) {
	return dot(g.RowDirection, p), dot(g.ColDirection, p)
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func norm(a [3]float64) float64 {
	return math.Sqrt(dot(a, a))
}

// Extract reads the geometry of a single representative image.
func Extract(path string) (*SeriesGeometry, error) {
	ds, err := dicomio.ParseFile(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	frameUID, ok := dicomio.FindString(ds, dicomio.TagFrameOfReferenceUID)
	if !ok {
		return nil, pfx.Err(fmt.Errorf("dicomgeom: %s has no FrameOfReferenceUID", path))
	}

	orientation, err := dicomio.ElementFloats(dicomio.Find(ds, dicomio.TagImageOrientationPatient))
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("dicomgeom: %s orientation: %v", path, err))
	}

	origin, err := dicomio.ElementFloats(dicomio.Find(ds, dicomtag.ImagePositionPatient))
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("dicomgeom: %s position: %v", path, err))
	}

	spacing, err := dicomio.ElementFloats(dicomio.Find(ds, dicomtag.PixelSpacing))
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("dicomgeom: %s spacing: %v", path, err))
	}

	g, err := New(frameUID, orientation, origin, spacing)
	if err != nil {
		return nil, err
	}

	if rows, ok := dicomio.ElementInt(dicomio.Find(ds, dicomtag.Rows)); ok {
		g.Rows = rows
	}
	if cols, ok := dicomio.ElementInt(dicomio.Find(ds, dicomtag.Columns)); ok {
		g.Cols = cols
	}

	return g, nil
}

// FrameOfReference reads only the frame-of-reference UID of an image.
func FrameOfReference(path string) (string, error) {
	ds, err := dicomio.ParseFile(path)
	if err != nil {
		return "", pfx.Err(err)
	}
	uid, ok := dicomio.FindString(ds, dicomio.TagFrameOfReferenceUID)
	if !ok {
		return "", pfx.Err(fmt.Errorf("dicomgeom: %s has no FrameOfReferenceUID", path))
	}
	return uid, nil
}
