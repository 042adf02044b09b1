package fusion

import (
	"path/filepath"

	"github.com/carbocation/pfx"

	"github.com/oncotools/regfusion/dicomgeom"
	"github.com/oncotools/regfusion/pacsdir"
)

// DirSource is the SeriesSource backed by the on-disk patient store.
type DirSource struct {
	Dir *pacsdir.Dir
}

func (s *DirSource) Instances(seriesID string) ([]Instance, error) {
	patientID, _, err := s.Dir.FindSeries(seriesID)
	if err != nil {
		return nil, pfx.Err(err)
	}

	files, err := s.Dir.SeriesFiles(patientID, seriesID)
	if err != nil {
		return nil, pfx.Err(err)
	}

	sorted, err := dicomgeom.SortInstances(files)
	if err != nil {
		return nil, pfx.Err(err)
	}

	out := make([]Instance, 0, len(sorted))
	for _, inst := range sorted {
		out = append(out, Instance{
			SOPInstanceUID: inst.SOPInstanceUID,
			InstanceNumber: inst.InstanceNumber,
			FileName:       filepath.Base(inst.Path),
			Path:           inst.Path,
		})
	}

	return out, nil
}

func (s *DirSource) Window(seriesID string) (center, width float64, ok bool) {
	patientID, _, err := s.Dir.FindSeries(seriesID)
	if err != nil {
		return 0, 0, false
	}

	first, err := s.Dir.FirstInstance(patientID, seriesID)
	if err != nil {
		return 0, 0, false
	}

	return dicomgeom.Window(first)
}
