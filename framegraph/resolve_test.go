package framegraph

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/oncotools/regfusion/registration"
	"github.com/oncotools/regfusion/rigid"
)

func rotZ(theta, tx, ty, tz float64) rigid.Matrix {
	c, s := math.Cos(theta), math.Sin(theta)
	return rigid.Matrix{
		c, -s, 0, tx,
		s, c, 0, ty,
		0, 0, 1, tz,
		0, 0, 0, 1,
	}
}

func cand(id, source, target string, m rigid.Matrix, refs ...string) registration.Candidate {
	refSet := make(map[string]bool)
	for _, r := range refs {
		refSet[r] = true
	}
	return registration.Candidate{
		ID:               id,
		SourceFrame:      source,
		TargetFrame:      target,
		Matrix:           m,
		ReferencedSeries: refSet,
		OriginFile:       "reg.dcm",
		FrameProvenance:  registration.FrameProvenanceDeclared,
	}
}

func TestIdentityFallbackIgnoresCandidates(t *testing.T) {
	// Same frame on both sides short-circuits before any candidate is
	// considered, even when objects claiming other pairs exist.
	got, err := Resolve(Request{
		PrimaryFrame:   "F1",
		SecondaryFrame: "F1",
		Candidates: []registration.Candidate{
			cand("r1", "F2", "F3", rotZ(0.5, 1, 2, 3)),
		},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Source != SourceIdentity {
		t.Fatalf("transform source = %s, want identity", got.Source)
	}
	if got.Matrix != rigid.Identity() {
		t.Fatalf("matrix = %v, want exact identity", got.Matrix)
	}
}

func TestDirectBothEncodings(t *testing.T) {
	m := rotZ(0.31, -28.0, 471.2, 160.3)

	// Encoding 1: declared F2 -> F1 matches secondary -> primary; used as-is.
	got, err := Resolve(Request{
		PrimaryFrame:   "F1",
		SecondaryFrame: "F2",
		Candidates:     []registration.Candidate{cand("r1", "F2", "F1", m)},
	})
	if err != nil {
		t.Fatalf("Resolve forward encoding: %v", err)
	}
	if got.Source != SourceDirect || got.RegistrationID != "r1" {
		t.Fatalf("source = %s, registration = %s", got.Source, got.RegistrationID)
	}
	if d := rigid.Distance(got.Matrix, m); d > 1e-12 {
		t.Fatalf("forward encoding deviates by %g", d)
	}

	// Encoding 2: declared F1 -> F2 is reversed; the inverse must be applied
	// and the inversion recorded explicitly.
	got, err = Resolve(Request{
		PrimaryFrame:   "F1",
		SecondaryFrame: "F2",
		Candidates:     []registration.Candidate{cand("r1", "F1", "F2", m)},
	})
	if err != nil {
		t.Fatalf("Resolve reversed encoding: %v", err)
	}
	if got.Source != SourceDirect {
		t.Fatalf("source = %s, want direct", got.Source)
	}
	if d := rigid.Distance(got.Matrix, rigid.Invert(m)); d > 1e-9 {
		t.Fatalf("reversed encoding deviates from invert(M) by %g", d)
	}
	if len(got.ProvenanceChain) != 1 || !strings.Contains(got.ProvenanceChain[0], "(inverted)") {
		t.Fatalf("inversion not recorded in provenance: %v", got.ProvenanceChain)
	}
}

func TestComposedChain(t *testing.T) {
	aToB := rotZ(0.2, 5, 0, 0)
	bToC := rotZ(-0.4, 0, 7, 1)

	got, err := Resolve(Request{
		PrimaryFrame:   "C",
		SecondaryFrame: "A",
		Candidates: []registration.Candidate{
			cand("ab", "A", "B", aToB),
			cand("bc", "B", "C", bToC),
		},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Source != SourceComposed {
		t.Fatalf("source = %s, want composed", got.Source)
	}
	if d := rigid.Distance(got.Matrix, rigid.Compose(bToC, aToB)); d > 1e-9 {
		t.Fatalf("composed chain deviates from compose(BtoC, AtoB) by %g", d)
	}
	if len(got.ProvenanceChain) != 2 {
		t.Fatalf("provenance chain = %v, want two hops", got.ProvenanceChain)
	}
}

func TestScoringPrefersSeriesReferences(t *testing.T) {
	weak := cand("weak", "F2", "F1", rotZ(0.9, 0, 0, 0))
	strong := cand("strong", "F2", "F1", rotZ(0.1, 1, 1, 1), "ct.series", "mr.series")

	req := Request{
		PrimaryFrame:    "F1",
		SecondaryFrame:  "F2",
		PrimarySeries:   "ct.series",
		SecondarySeries: "mr.series",
		Candidates:      []registration.Candidate{weak, strong},
	}

	for i := 0; i < 20; i++ {
		got, err := Resolve(req)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got.RegistrationID != "strong" {
			t.Fatalf("run %d picked %s, want the series-referencing candidate every time", i, got.RegistrationID)
		}
	}
}

func TestTieBreakPrefersNonIdentityRotation(t *testing.T) {
	degenerate := cand("degenerate", "F2", "F1", rigid.Identity())
	rotated := cand("rotated", "F2", "F1", rotZ(0.25, 2, 3, 4))

	got, err := Resolve(Request{
		PrimaryFrame:   "F1",
		SecondaryFrame: "F2",
		Candidates:     []registration.Candidate{degenerate, rotated},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.RegistrationID != "rotated" {
		t.Fatalf("picked %s, want the candidate with rotation content", got.RegistrationID)
	}
}

func TestNoRegistrationFound(t *testing.T) {
	_, err := Resolve(Request{PrimaryFrame: "F1", SecondaryFrame: "F2"})
	if !errors.Is(err, ErrNoRegistrationFound) {
		t.Fatalf("error = %v, want ErrNoRegistrationFound", err)
	}
}

func TestNoPathInGraph(t *testing.T) {
	_, err := Resolve(Request{
		PrimaryFrame:   "F1",
		SecondaryFrame: "F2",
		Candidates: []registration.Candidate{
			cand("elsewhere", "F3", "F4", rotZ(0.1, 0, 0, 0)),
		},
	})
	if !errors.Is(err, ErrNoPathInGraph) {
		t.Fatalf("error = %v, want ErrNoPathInGraph", err)
	}
}

func TestPETSharingPrimaryFrame(t *testing.T) {
	// CT in F1, MR in F2, PET sharing F1 with the CT (CTAC). One object maps
	// F2 -> F1.
	m := rotZ(0.6, 10, -4, 2)
	candidates := []registration.Candidate{cand("r1", "F2", "F1", m)}

	ctMR, err := Resolve(Request{PrimaryFrame: "F1", SecondaryFrame: "F2", Candidates: candidates})
	if err != nil {
		t.Fatalf("resolve(CT, MR): %v", err)
	}

	ctPET, err := Resolve(Request{PrimaryFrame: "F1", SecondaryFrame: "F1", Candidates: candidates})
	if err != nil {
		t.Fatalf("resolve(CT, PET): %v", err)
	}
	if ctPET.Source != SourceIdentity {
		t.Fatalf("resolve(CT, PET) source = %s, want identity", ctPET.Source)
	}

	petMR, err := Resolve(Request{PrimaryFrame: "F1", SecondaryFrame: "F2", Candidates: candidates})
	if err != nil {
		t.Fatalf("resolve(PET, MR): %v", err)
	}
	if d := rigid.Distance(petMR.Matrix, ctMR.Matrix); d > 1e-12 {
		t.Fatalf("resolve(PET, MR) deviates from resolve(CT, MR) by %g", d)
	}
}

func TestInferredConfidencePropagates(t *testing.T) {
	inferred := cand("guessed", "F2", "F1", rotZ(0.2, 1, 0, 0))
	inferred.FrameProvenance = registration.FrameProvenanceInferred

	got, err := Resolve(Request{
		PrimaryFrame:   "F1",
		SecondaryFrame: "F2",
		Candidates:     []registration.Candidate{inferred},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Confidence != ConfidenceInferred {
		t.Fatalf("confidence = %s, want inferred", got.Confidence)
	}
}
