// Package rtstruct reads the subset of a DICOM structure set the Dice
// validator needs: ROI names and their planar contour rings in world
// (patient) millimeter coordinates.
package rtstruct

import (
	"fmt"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/suyashkumar/dicom/element"

	"github.com/oncotools/regfusion/dicomio"
)

// BodyNames are the ROI labels accepted as the body outline, matched
// case-insensitively.
var BodyNames = []string{"BODY", "EXTERNAL", "BODY CONTOUR", "BODYCONTOUR"}

// Contour is one closed planar ring of world-coordinate points.
type Contour struct {
	Points [][3]float64
}

// ROI is one named structure with its contour rings.
type ROI struct {
	Number   int
	Name     string
	Contours []Contour
}

// StructureSet is the parsed contents of one RTSTRUCT file.
type StructureSet struct {
	Path string
	ROIs []ROI
}

// ParseFile decodes a structure set. Contours that fail to decode are dropped
// individually; a file-level error means the set itself is unreadable.
func ParseFile(path string) (*StructureSet, error) {
	ds, err := dicomio.ParseFile(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	return ParseDataSet(ds, path)
}

// ParseDataSet decodes a structure set from an already-parsed dataset.
func ParseDataSet(ds *element.DataSet, path string) (*StructureSet, error) {
	names := make(map[int]string)
	for _, item := range dicomio.SequenceItems(dicomio.Find(ds, dicomio.TagStructureSetROISequence)) {
		num, ok := dicomio.ElementInt(dicomio.FindInItem(item, dicomio.TagROINumber))
		if !ok {
			continue
		}
		name, _ := dicomio.ElementString(dicomio.FindInItem(item, dicomio.TagROIName))
		names[num] = name
	}

	out := &StructureSet{Path: path}

	contourSeq := dicomio.Find(ds, dicomio.TagROIContourSequence)
	if contourSeq == nil {
		return nil, pfx.Err(fmt.Errorf("rtstruct: %s has no ROIContourSequence", path))
	}

	for _, roiItem := range dicomio.SequenceItems(contourSeq) {
		num, ok := dicomio.ElementInt(dicomio.FindInItem(roiItem, dicomio.TagReferencedROINumber))
		if !ok {
			continue
		}

		roi := ROI{Number: num, Name: names[num]}

		for _, contourItem := range dicomio.SequenceItems(dicomio.FindInItem(roiItem, dicomio.TagContourSequence)) {
			data, err := dicomio.ElementFloats(dicomio.FindInItem(contourItem, dicomio.TagContourData))
			if err != nil || len(data) < 9 || len(data)%3 != 0 {
				continue
			}

			c := Contour{Points: make([][3]float64, 0, len(data)/3)}
			for i := 0; i+2 < len(data); i += 3 {
				c.Points = append(c.Points, [3]float64{data[i], data[i+1], data[i+2]})
			}
			roi.Contours = append(roi.Contours, c)
		}

		if len(roi.Contours) > 0 {
			out.ROIs = append(out.ROIs, roi)
		}
	}

	return out, nil
}

// FindByNames returns the first ROI whose name matches one of the given
// labels, case-insensitively, or nil.
func (s *StructureSet) FindByNames(names ...string) *ROI {
	for i := range s.ROIs {
		for _, want := range names {
			if strings.EqualFold(strings.TrimSpace(s.ROIs[i].Name), want) {
				return &s.ROIs[i]
			}
		}
	}
	return nil
}

// Body returns the body-outline ROI, or nil when the set has none.
func (s *StructureSet) Body() *ROI {
	return s.FindByNames(BodyNames...)
}
