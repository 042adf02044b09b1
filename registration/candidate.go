// Package registration discovers and decodes DICOM Spatial Registration
// objects into rigid transform candidates. A single object may declare
// several matrices; every decodable candidate is surfaced and malformed ones
// are skipped individually rather than aborting the file.
package registration

import (
	"errors"

	"github.com/oncotools/regfusion/rigid"
)

// ErrMalformedCandidate marks a candidate whose matrix is non-rigid or whose
// geometry could not be read. The candidate is skipped; siblings in the same
// file are still considered.
var ErrMalformedCandidate = errors.New("registration: malformed candidate")

// FrameProvenance records how a candidate's frame pair was established.
type FrameProvenance string

const (
	// FrameProvenanceDeclared means both frame UIDs came from the object's
	// own metadata.
	FrameProvenanceDeclared FrameProvenance = "declared"

	// FrameProvenanceInferred means the frames were reconstructed from the
	// referenced series because the object's own UIDs were missing or
	// identical. Lower confidence, and flagged as such all the way through
	// resolution.
	FrameProvenanceInferred FrameProvenance = "inferred"
)

// Candidate is one rigid transform decoded from a registration object,
// mapping points from SourceFrame into TargetFrame.
type Candidate struct {
	ID               string
	SourceFrame      string
	TargetFrame      string
	Matrix           rigid.Matrix
	MatrixType       string
	ReferencedSeries map[string]bool
	OriginFile       string
	Index            int
	FrameProvenance  FrameProvenance
}

// ReferencesSeries reports whether the object that produced this candidate
// claims to relate the given series.
func (c Candidate) ReferencesSeries(seriesUID string) bool {
	return c.ReferencedSeries[seriesUID]
}

// FrameLookup resolves the frame-of-reference UID of a series, used to infer
// frame pairs for malformed objects. May be nil, which disables inference.
type FrameLookup func(seriesUID string) (string, error)
