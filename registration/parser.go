package registration

import (
	"fmt"

	"path/filepath"

	"github.com/carbocation/pfx"
	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"

	"github.com/oncotools/regfusion/dicomio"
	"github.com/oncotools/regfusion/rigid"
)

// ParseFile decodes every transform candidate from one registration object.
// Candidates that fail to decode are returned as wrapped ErrMalformedCandidate
// values in skipped; they never abort their siblings. The file-level error is
// non-nil only when the object itself cannot be read.
func ParseFile(path string, lookup FrameLookup) (candidates []Candidate, skipped []error, err error) {
	ds, err := dicomio.ParseFile(path)
	if err != nil {
		return nil, nil, pfx.Err(err)
	}

	return ParseDataSet(ds, path, lookup)
}

// ParseDataSet decodes candidates from an already-parsed dataset.
func ParseDataSet(ds *element.DataSet, path string, lookup FrameLookup) (candidates []Candidate, skipped []error, err error) {
	targetFrame, _ := dicomio.FindString(ds, dicomio.TagFrameOfReferenceUID)
	referenced := referencedSeries(ds)

	regSeq := dicomio.Find(ds, dicomio.TagRegistrationSequence)
	if regSeq == nil {
		return nil, nil, pfx.Err(fmt.Errorf("registration: %s has no RegistrationSequence", path))
	}

	index := 0
	for _, item := range dicomio.SequenceItems(regSeq) {
		sourceFrame, _ := dicomio.ElementString(dicomio.FindInItem(item, dicomio.TagFrameOfReferenceUID))

		for _, matrixReg := range dicomio.SequenceItems(dicomio.FindInItem(item, dicomio.TagMatrixRegistrationSequence)) {
			for _, matrixItem := range dicomio.SequenceItems(dicomio.FindInItem(matrixReg, dicomio.TagMatrixSequence)) {
				cand, err := decodeCandidate(matrixItem, sourceFrame, targetFrame, referenced, path, index, lookup)
				index++
				if err != nil {
					skipped = append(skipped, fmt.Errorf("%w: %s candidate %d: %v", ErrMalformedCandidate, path, index-1, err))
					continue
				}
				candidates = append(candidates, *cand)
			}
		}
	}

	return candidates, skipped, nil
}

func decodeCandidate(matrixItem *element.Element, sourceFrame, targetFrame string, referenced map[string]bool, path string, index int, lookup FrameLookup) (*Candidate, error) {
	values, err := dicomio.ElementFloats(dicomio.FindInItem(matrixItem, dicomio.TagTransformationMatrix))
	if err != nil {
		return nil, err
	}

	m, err := rigid.FromSlice(values)
	if err != nil {
		return nil, err
	}
	if err := rigid.CheckRigid(m); err != nil {
		return nil, err
	}

	matrixType, _ := dicomio.ElementString(dicomio.FindInItem(matrixItem, dicomio.TagTransformationMatrixType))

	// Deterministic across requests so provenance chains and the
	// registrationId filter stay stable.
	cand := &Candidate{
		ID:               fmt.Sprintf("%s#%d", filepath.Base(path), index),
		SourceFrame:      sourceFrame,
		TargetFrame:      targetFrame,
		Matrix:           m,
		MatrixType:       matrixType,
		ReferencedSeries: referenced,
		OriginFile:       path,
		Index:            index,
		FrameProvenance:  FrameProvenanceDeclared,
	}

	if cand.SourceFrame == "" || cand.TargetFrame == "" || cand.SourceFrame == cand.TargetFrame {
		if err := inferFrames(cand, lookup); err != nil {
			return nil, err
		}
	}

	return cand, nil
}

// inferFrames reconstructs a frame pair for objects whose own frame UIDs are
// missing or identical, a malformed-but-common encoding. The frames of every
// referenced series are read and the two that differ become the pair. The
// candidate is downgraded to inferred provenance so downstream consumers can
// tell it apart from well-formed ones.
func inferFrames(cand *Candidate, lookup FrameLookup) error {
	if lookup == nil {
		return fmt.Errorf("frames missing or identical (%q) and no frame lookup available", cand.SourceFrame)
	}

	seen := make(map[string]bool)
	var distinct []string
	for seriesUID := range cand.ReferencedSeries {
		frame, err := lookup(seriesUID)
		if err != nil || frame == "" {
			continue
		}
		if !seen[frame] {
			seen[frame] = true
			distinct = append(distinct, frame)
		}
	}

	if len(distinct) != 2 {
		return fmt.Errorf("frames missing or identical and referenced series yield %d distinct frames, need 2", len(distinct))
	}

	// When the object's own frame matches one of the pair, keep it as the
	// target; otherwise the order is unknowable here and the direction
	// resolver fixes it against the actual series frames.
	a, b := distinct[0], distinct[1]
	switch cand.TargetFrame {
	case a:
		cand.SourceFrame = b
	case b:
		cand.SourceFrame = a
	default:
		cand.SourceFrame, cand.TargetFrame = a, b
	}

	cand.FrameProvenance = FrameProvenanceInferred

	return nil
}

// referencedSeries collects every SeriesInstanceUID the object claims to
// relate, from the top-level ReferencedSeriesSequence and from the
// other-studies variant.
func referencedSeries(ds *element.DataSet) map[string]bool {
	out := make(map[string]bool)

	collect := func(seq *element.Element) {
		for _, item := range dicomio.SequenceItems(seq) {
			if uid, ok := dicomio.ElementString(dicomio.FindInItem(item, dicomio.TagSeriesInstanceUID)); ok && uid != "" {
				out[uid] = true
			}
		}
	}

	collect(dicomio.Find(ds, dicomio.TagReferencedSeriesSequence))

	// StudiesContainingOtherReferencedInstancesSequence nests another
	// ReferencedSeriesSequence per study.
	for _, study := range dicomio.SequenceItems(dicomio.Find(ds, tagOtherReferencedStudies)) {
		collect(dicomio.FindInItem(study, dicomio.TagReferencedSeriesSequence))
	}

	return out
}

var tagOtherReferencedStudies = dicomtag.Tag{Group: 0x0008, Element: 0x1200}
