// Package pacsdir navigates the on-disk patient store. The layout is
// root/patients/<patientID>/<studyUID>/<seriesUID>/<instance>.dcm; every
// function here is a read-only lookup, so different series may be read in
// parallel without coordination.
package pacsdir

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/carbocation/pfx"
)

// Dir is a handle on one patient store root.
type Dir struct {
	Root string
}

func New(root string) *Dir {
	return &Dir{Root: root}
}

func (d *Dir) patientsRoot() string {
	return filepath.Join(d.Root, "patients")
}

// PatientPath returns the directory of one patient.
func (d *Dir) PatientPath(patientID string) string {
	return filepath.Join(d.patientsRoot(), patientID)
}

// Studies lists the study UIDs of a patient in sorted order.
func (d *Dir) Studies(patientID string) ([]string, error) {
	return subdirs(d.PatientPath(patientID))
}

// Series lists the series UIDs within one study in sorted order.
func (d *Dir) Series(patientID, studyUID string) ([]string, error) {
	return subdirs(filepath.Join(d.PatientPath(patientID), studyUID))
}

// SeriesFiles returns the DICOM files of a series, searching every study of
// the patient. Sorted lexically; callers that need physical slice order sort
// by plane position instead.
func (d *Dir) SeriesFiles(patientID, seriesUID string) ([]string, error) {
	studies, err := d.Studies(patientID)
	if err != nil {
		return nil, pfx.Err(err)
	}

	for _, study := range studies {
		dir := filepath.Join(d.PatientPath(patientID), study, seriesUID)
		files, err := dicomFiles(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, pfx.Err(err)
		}
		if len(files) > 0 {
			return files, nil
		}
	}

	return nil, pfx.Err(fmt.Errorf("pacsdir: series %s not found for patient %s", seriesUID, patientID))
}

// FirstInstance returns one representative file of a series.
func (d *Dir) FirstInstance(patientID, seriesUID string) (string, error) {
	files, err := d.SeriesFiles(patientID, seriesUID)
	if err != nil {
		return "", err
	}
	return files[0], nil
}

// FindSeries locates which patient and study hold a series UID. Linear over
// the store; patient counts per deployment are small enough that an index has
// not been worth building.
func (d *Dir) FindSeries(seriesUID string) (patientID, studyUID string, err error) {
	patients, err := subdirs(d.patientsRoot())
	if err != nil {
		return "", "", pfx.Err(err)
	}

	for _, patient := range patients {
		studies, err := d.Studies(patient)
		if err != nil {
			continue
		}
		for _, study := range studies {
			if _, statErr := os.Stat(filepath.Join(d.PatientPath(patient), study, seriesUID)); statErr == nil {
				return patient, study, nil
			}
		}
	}

	return "", "", pfx.Err(fmt.Errorf("pacsdir: series %s not found in store", seriesUID))
}

func subdirs(path string) ([]string, error) {
	entries, err := ioutil.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)

	return out, nil
}

func dicomFiles(dir string) ([]string, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".dcm") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)

	return out, nil
}
