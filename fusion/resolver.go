package fusion

import (
	"context"
	"fmt"

	"github.com/carbocation/pfx"

	"github.com/oncotools/regfusion/dicomgeom"
	"github.com/oncotools/regfusion/framegraph"
	"github.com/oncotools/regfusion/pacsdir"
	"github.com/oncotools/regfusion/registration"
)

// Resolver ties together the store, the locator, the parser, and the frame
// graph into the resolve(primary, secondary, registrationId?) operation. It
// holds no state; every call re-reads candidates, which is cheap because a
// patient carries tens of registration objects at most.
type Resolver struct {
	Dir *pacsdir.Dir
	Log Logger
}

// Resolve finds the transform mapping the secondary series into the primary
// series' frame. registrationID, when non-empty, restricts candidates to the
// registration series (or file) with that identifier.
func (r *Resolver) Resolve(ctx context.Context, primarySeriesID, secondarySeriesID, registrationID string) (*framegraph.ResolvedTransform, error) {
	patientID, _, err := r.Dir.FindSeries(primarySeriesID)
	if err != nil {
		return nil, pfx.Err(err)
	}

	primaryFrame, err := r.seriesFrame(patientID, primarySeriesID)
	if err != nil {
		return nil, pfx.Err(err)
	}
	secondaryFrame, err := r.seriesFrame(patientID, secondarySeriesID)
	if err != nil {
		return nil, pfx.Err(err)
	}

	// Shared frame means already co-registered; no registration-object
	// search happens at all in that case.
	if primaryFrame == secondaryFrame {
		return framegraph.Resolve(framegraph.Request{
			PrimaryFrame:   primaryFrame,
			SecondaryFrame: secondaryFrame,
		})
	}

	candidates, err := r.Candidates(patientID, registrationID)
	if err != nil {
		return nil, err
	}

	return framegraph.Resolve(framegraph.Request{
		PrimaryFrame:    primaryFrame,
		SecondaryFrame:  secondaryFrame,
		PrimarySeries:   primarySeriesID,
		SecondarySeries: secondarySeriesID,
		Candidates:      candidates,
	})
}

// Candidates locates and parses every transform candidate for the patient,
// optionally restricted to one registration series or file.
func (r *Resolver) Candidates(patientID, registrationID string) ([]registration.Candidate, error) {
	located, err := registration.Locate(r.Dir, patientID)
	if err != nil {
		return nil, pfx.Err(err)
	}

	lookup := func(seriesUID string) (string, error) {
		return r.seriesFrame(patientID, seriesUID)
	}

	var candidates []registration.Candidate
	for _, loc := range located {
		if registrationID != "" && loc.SeriesUID != registrationID && loc.Path != registrationID {
			continue
		}

		cands, skipped, err := registration.ParseFile(loc.Path, lookup)
		if err != nil {
			if r.Log != nil {
				r.Log.Printf("skipping unreadable registration object %s: %v", loc.Path, err)
			}
			continue
		}
		for _, skip := range skipped {
			if r.Log != nil {
				r.Log.Println(skip)
			}
		}
		candidates = append(candidates, cands...)
	}

	if registrationID != "" && len(candidates) == 0 {
		return nil, pfx.Err(fmt.Errorf("fusion: registration %s not found for patient %s", registrationID, patientID))
	}

	return candidates, nil
}

func (r *Resolver) seriesFrame(patientID, seriesID string) (string, error) {
	first, err := r.Dir.FirstInstance(patientID, seriesID)
	if err != nil {
		return "", err
	}
	return dicomgeom.FrameOfReference(first)
}

// ResolveFunc adapts the resolver to the orchestrator's injection point.
func (r *Resolver) ResolveFunc() ResolveFunc {
	return func(ctx context.Context, primarySeriesID, secondarySeriesID string) (*framegraph.ResolvedTransform, error) {
		return r.Resolve(ctx, primarySeriesID, secondarySeriesID, "")
	}
}
