package dicomgeom

import (
	"sort"

	"github.com/carbocation/pfx"
	"github.com/suyashkumar/dicom/dicomtag"

	"github.com/oncotools/regfusion/dicomio"
)

// Instance identifies one image of a series along with its plane position.
type Instance struct {
	Path           string
	SOPInstanceUID string
	InstanceNumber int
	PlanePosition  float64
}

// SortInstances reads each file's position, projects it onto the slice normal
// of the first readable image, and returns the instances ordered along that
// normal. Instance numbers are untrustworthy across vendors; physical order
// is what the resampler needs.
func SortInstances(paths []string) ([]Instance, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	var normal *[3]float64
	out := make([]Instance, 0, len(paths))

	for _, path := range paths {
		ds, err := dicomio.ParseFile(path)
		if err != nil {
			return nil, pfx.Err(err)
		}

		inst := Instance{Path: path}
		inst.SOPInstanceUID, _ = dicomio.FindString(ds, dicomio.TagSOPInstanceUID)
		inst.InstanceNumber, _ = dicomio.ElementInt(dicomio.Find(ds, dicomtag.InstanceNumber))

		orientation, err := dicomio.ElementFloats(dicomio.Find(ds, dicomio.TagImageOrientationPatient))
		if err == nil && len(orientation) == 6 && normal == nil {
			n := cross(
				[3]float64{orientation[0], orientation[1], orientation[2]},
				[3]float64{orientation[3], orientation[4], orientation[5]},
			)
			if l := norm(n); l > 0 {
				normal = &[3]float64{n[0] / l, n[1] / l, n[2] / l}
			}
		}

		if origin, err := dicomio.ElementFloats(dicomio.Find(ds, dicomtag.ImagePositionPatient)); err == nil && len(origin) == 3 && normal != nil {
			inst.PlanePosition = dot(*normal, [3]float64{origin[0], origin[1], origin[2]})
		}

		out = append(out, inst)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PlanePosition != out[j].PlanePosition {
			return out[i].PlanePosition < out[j].PlanePosition
		}
		return out[i].InstanceNumber < out[j].InstanceNumber
	})

	return out, nil
}

// Window reads the stored window center/width of an image. ok is false when
// either tag is absent; callers fall back to the resampled min/max range.
func Window(path string) (center, width float64, ok bool) {
	ds, err := dicomio.ParseFile(path)
	if err != nil {
		return 0, 0, false
	}

	centers, err := dicomio.ElementFloats(dicomio.Find(ds, dicomtag.WindowCenter))
	if err != nil || len(centers) == 0 {
		return 0, 0, false
	}
	widths, err := dicomio.ElementFloats(dicomio.Find(ds, dicomio.TagWindowWidth))
	if err != nil || len(widths) == 0 {
		return 0, 0, false
	}

	return centers[0], widths[0], true
}
