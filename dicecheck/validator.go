package dicecheck

import (
	"fmt"
	"math"
	"sort"

	"github.com/carbocation/pfx"

	"github.com/oncotools/regfusion/dicomgeom"
	"github.com/oncotools/regfusion/dicomio"
	"github.com/oncotools/regfusion/pacsdir"
	"github.com/oncotools/regfusion/registration"
	"github.com/oncotools/regfusion/rigid"
	"github.com/oncotools/regfusion/rtstruct"
)

// Logger is the minimal logging surface the validator needs.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Validator loads contours and geometry from the patient store and scores
// transform candidates against them. It never mutates a resolved transform;
// results are purely informational.
type Validator struct {
	Dir *pacsdir.Dir
	Log Logger
}

// Validate warps the secondary series' body outline into primary space with
// the given matrix reading and scores the per-slice overlap.
func (v *Validator) Validate(primarySeriesID, secondarySeriesID string, m rigid.Matrix, variant Variant) (*Summary, error) {
	applied, err := Apply(m, variant)
	if err != nil {
		return nil, pfx.Err(err)
	}

	input, err := v.loadInput(primarySeriesID, secondarySeriesID)
	if err != nil {
		return nil, err
	}

	results := PairDice(input.primaryBody, input.secondaryBody, input.planes, applied)
	summary := Summarize(variant, results)

	return &summary, nil
}

// RankedResult is one row of the batch candidate-by-variant scan.
type RankedResult struct {
	CandidateID string  `json:"candidateId"`
	OriginFile  string  `json:"originFile"`
	Summary     Summary `json:"summary"`
}

// Scan probes every candidate under every matrix variant and ranks the
// combinations by mean Dice. Contours and geometry load once per scan.
func (v *Validator) Scan(primarySeriesID, secondarySeriesID string, candidates []registration.Candidate) ([]RankedResult, error) {
	if len(candidates) == 0 {
		return nil, pfx.Err(fmt.Errorf("dicecheck: no candidates to scan"))
	}

	input, err := v.loadInput(primarySeriesID, secondarySeriesID)
	if err != nil {
		return nil, err
	}

	var out []RankedResult
	for _, cand := range candidates {
		for _, variant := range Variants() {
			applied, err := Apply(cand.Matrix, variant)
			if err != nil {
				continue
			}

			results := PairDice(input.primaryBody, input.secondaryBody, input.planes, applied)
			out = append(out, RankedResult{
				CandidateID: cand.ID,
				OriginFile:  cand.OriginFile,
				Summary:     Summarize(variant, results),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Summary.MeanDice > out[j].Summary.MeanDice
	})

	return out, nil
}

// Contours exposes the body outlines and the primary slice grid, for callers
// that render overlays rather than score them.
func (v *Validator) Contours(primarySeriesID, secondarySeriesID string) (primaryBody, secondaryBody []rtstruct.Contour, planes SlicePlanes, err error) {
	input, err := v.loadInput(primarySeriesID, secondarySeriesID)
	if err != nil {
		return nil, nil, SlicePlanes{}, err
	}
	return input.primaryBody, input.secondaryBody, input.planes, nil
}

type validationInput struct {
	planes        SlicePlanes
	primaryBody   []rtstruct.Contour
	secondaryBody []rtstruct.Contour
}

func (v *Validator) loadInput(primarySeriesID, secondarySeriesID string) (*validationInput, error) {
	patientID, _, err := v.Dir.FindSeries(primarySeriesID)
	if err != nil {
		return nil, pfx.Err(err)
	}

	planes, primaryPositions, err := v.seriesPlanes(patientID, primarySeriesID)
	if err != nil {
		return nil, err
	}
	_, secondaryPositions, err := v.seriesPlanes(patientID, secondarySeriesID)
	if err != nil {
		return nil, err
	}

	primaryBody, secondaryBody, err := v.bodyContours(patientID, primaryPositions, secondaryPositions)
	if err != nil {
		return nil, err
	}

	return &validationInput{
		planes:        planes,
		primaryBody:   primaryBody,
		secondaryBody: secondaryBody,
	}, nil
}

func (v *Validator) seriesPlanes(patientID, seriesID string) (SlicePlanes, []float64, error) {
	files, err := v.Dir.SeriesFiles(patientID, seriesID)
	if err != nil {
		return SlicePlanes{}, nil, pfx.Err(err)
	}

	geom, err := dicomgeom.Extract(files[0])
	if err != nil {
		return SlicePlanes{}, nil, pfx.Err(err)
	}

	instances, err := dicomgeom.SortInstances(files)
	if err != nil {
		return SlicePlanes{}, nil, pfx.Err(err)
	}

	positions := make([]float64, 0, len(instances))
	for _, inst := range instances {
		positions = append(positions, inst.PlanePosition)
	}

	return NewSlicePlanes(geom, positions), positions, nil
}

// bodyContours walks every structure set of the patient, pulls the body
// outline from each, and attaches it to the primary or secondary series by
// plane proximity: a structure set does not reliably say which series it was
// drawn on, but its contours sit on that series' slice planes.
func (v *Validator) bodyContours(patientID string, primaryPositions, secondaryPositions []float64) (primaryBody, secondaryBody []rtstruct.Contour, err error) {
	studies, err := v.Dir.Studies(patientID)
	if err != nil {
		return nil, nil, pfx.Err(err)
	}

	for _, study := range studies {
		series, err := v.Dir.Series(patientID, study)
		if err != nil {
			continue
		}

		for _, seriesUID := range series {
			files, err := v.Dir.SeriesFiles(patientID, seriesUID)
			if err != nil || len(files) == 0 {
				continue
			}
			if !isStructureSet(files[0]) {
				continue
			}

			for _, f := range files {
				set, err := rtstruct.ParseFile(f)
				if err != nil {
					if v.Log != nil {
						v.Log.Printf("skipping unreadable structure set %s: %v", f, err)
					}
					continue
				}

				body := set.Body()
				if body == nil {
					continue
				}

				if attachToPrimary(body.Contours, primaryPositions, secondaryPositions) {
					primaryBody = append(primaryBody, body.Contours...)
				} else {
					secondaryBody = append(secondaryBody, body.Contours...)
				}
			}
		}
	}

	if len(primaryBody) == 0 || len(secondaryBody) == 0 {
		return nil, nil, pfx.Err(fmt.Errorf("dicecheck: body outline missing for %s",
			map[bool]string{true: "primary series", false: "secondary series"}[len(primaryBody) == 0]))
	}

	return primaryBody, secondaryBody, nil
}

// attachToPrimary decides which series a body outline belongs to by comparing
// the median contour Z against each series' plane positions.
func attachToPrimary(contours []rtstruct.Contour, primaryPositions, secondaryPositions []float64) bool {
	var zs []float64
	for _, c := range contours {
		if len(c.Points) > 0 {
			zs = append(zs, c.Points[0][2])
		}
	}
	if len(zs) == 0 {
		return true
	}

	sort.Float64s(zs)
	median := zs[len(zs)/2]

	return minDistance(primaryPositions, median) <= minDistance(secondaryPositions, median)
}

func minDistance(positions []float64, z float64) float64 {
	best := math.Inf(1)
	for _, p := range positions {
		if d := math.Abs(p - z); d < best {
			best = d
		}
	}
	return best
}

func isStructureSet(path string) bool {
	ds, err := dicomio.ParseFile(path)
	if err != nil {
		return false
	}
	modality, ok := dicomio.FindString(ds, dicomio.TagModality)
	return ok && modality == "RTSTRUCT"
}
