package registration

import (
	"github.com/carbocation/pfx"

	"github.com/oncotools/regfusion/dicomio"
	"github.com/oncotools/regfusion/pacsdir"
)

// Located identifies one registration object file within the patient store.
type Located struct {
	PatientID string
	StudyUID  string
	SeriesUID string
	Path      string
}

// Locate finds every registration-object file belonging to any study of the
// patient. Registrations frequently live alongside a contrast or PET/CT
// session distinct from the planning study, so the search is always
// patient-wide. An empty result is not an error; it signals that no direct
// registration exists.
func Locate(dir *pacsdir.Dir, patientID string) ([]Located, error) {
	studies, err := dir.Studies(patientID)
	if err != nil {
		return nil, pfx.Err(err)
	}

	var out []Located
	for _, study := range studies {
		located, err := locateInStudy(dir, patientID, study)
		if err != nil {
			return nil, err
		}
		out = append(out, located...)
	}

	return out, nil
}

// LocateInStudy restricts the search to a single study, the fallback when no
// patient context is available.
func LocateInStudy(dir *pacsdir.Dir, patientID, studyUID string) ([]Located, error) {
	return locateInStudy(dir, patientID, studyUID)
}

func locateInStudy(dir *pacsdir.Dir, patientID, studyUID string) ([]Located, error) {
	series, err := dir.Series(patientID, studyUID)
	if err != nil {
		return nil, pfx.Err(err)
	}

	var out []Located
	for _, seriesUID := range series {
		files, err := dir.SeriesFiles(patientID, seriesUID)
		if err != nil || len(files) == 0 {
			continue
		}

		if !isRegistrationObject(files[0]) {
			continue
		}

		for _, f := range files {
			out = append(out, Located{
				PatientID: patientID,
				StudyUID:  studyUID,
				SeriesUID: seriesUID,
				Path:      f,
			})
		}
	}

	return out, nil
}

// isRegistrationObject checks the modality and SOP class of one file. A
// series whose first instance is not readable is skipped, not fatal.
func isRegistrationObject(path string) bool {
	ds, err := dicomio.ParseFile(path)
	if err != nil {
		return false
	}

	if modality, ok := dicomio.FindString(ds, dicomio.TagModality); ok && modality == "REG" {
		return true
	}
	if sopClass, ok := dicomio.FindString(ds, dicomio.TagSOPClassUID); ok && sopClass == dicomio.SpatialRegistrationSOPClass {
		return true
	}

	return false
}
