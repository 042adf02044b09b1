package fusion

import (
	"context"
	"fmt"
	"sync"

	"github.com/carbocation/pfx"
	"golang.org/x/sync/singleflight"

	"github.com/oncotools/regfusion/framegraph"
	"github.com/oncotools/regfusion/fusion/resampler"
)

// SeriesSource lists the instances and display window of a series. Isolating
// it behind an interface keeps the orchestrator free of filesystem concerns
// and lets tests substitute synthetic series.
type SeriesSource interface {
	// Instances returns the series' slices ordered along the slice normal.
	Instances(seriesID string) ([]Instance, error)

	// Window returns the stored display window of the series, ok=false when
	// absent.
	Window(seriesID string) (center, width float64, ok bool)
}

// ResolveFunc resolves the transform mapping secondary into primary space.
type ResolveFunc func(ctx context.Context, primarySeriesID, secondarySeriesID string) (*framegraph.ResolvedTransform, error)

// Logger is the minimal logging surface the orchestrator needs.
type Logger interface {
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

// Options modify one GetManifest call.
type Options struct {
	// Force bypasses the cache and rebuilds the pair. A force arriving while
	// a build is already in flight waits for that build instead of racing it.
	Force bool

	// Preload resamples every slice during the manifest build. Without it
	// the entry stays pending with its instance list populated, so a viewer
	// can render metadata before committing to the full resample cost.
	Preload bool

	Interpolation  resampler.Interpolation
	IncludePrimary bool
}

type pairKey struct {
	Primary   string
	Secondary string
}

// pairState is everything cached for one (primary, secondary) pair. Buffers
// are only ever generated from the single transform stored alongside them;
// eviction is whole-pair so that invariant cannot be violated.
type pairState struct {
	entry     ManifestEntry
	transform *framegraph.ResolvedTransform
	buffers   map[string][]byte
}

// Orchestrator owns the slice-buffer cache and the in-flight registry. It is
// the only component in the pipeline with shared mutable state; everything it
// calls is side-effect-free or externally synchronized.
type Orchestrator struct {
	Series    SeriesSource
	Resampler resampler.Client
	Resolve   ResolveFunc
	Log       Logger

	group singleflight.Group

	mu    sync.RWMutex
	pairs map[pairKey]*pairState
}

func NewOrchestrator(series SeriesSource, client resampler.Client, resolve ResolveFunc, log Logger) *Orchestrator {
	return &Orchestrator{
		Series:    series,
		Resampler: client,
		Resolve:   resolve,
		Log:       log,
		pairs:     make(map[pairKey]*pairState),
	}
}

// GetManifest resolves and (optionally) resamples each requested secondary
// against the primary. Concurrent calls for the same pair are deduplicated
// through a keyed single-flight: a second caller arriving mid-build receives
// the first build's result rather than triggering duplicate resamples.
func (o *Orchestrator) GetManifest(ctx context.Context, primarySeriesID string, secondarySeriesIDs []string, opts Options) (*Manifest, error) {
	if opts.Interpolation == "" {
		opts.Interpolation = resampler.InterpolationLinear
	}

	primaryInstances, err := o.Series.Instances(primarySeriesID)
	if err != nil {
		return nil, pfx.Err(err)
	}
	if len(primaryInstances) == 0 {
		return nil, pfx.Err(fmt.Errorf("fusion: primary series %s has no instances", primarySeriesID))
	}

	out := &Manifest{PrimarySeriesID: primarySeriesID}

	for _, secondaryID := range secondarySeriesIDs {
		key := pairKey{Primary: primarySeriesID, Secondary: secondaryID}

		if !opts.Force {
			if entry, ok := o.cachedEntry(key, opts.Preload); ok {
				out.Entries = append(out.Entries, entry)
				continue
			}
		} else {
			o.evict(key)
		}

		result, err, _ := o.group.Do(flightKey(key), func() (interface{}, error) {
			return o.buildPair(ctx, key, primaryInstances, opts), nil
		})
		if err != nil {
			// The build function never returns an error; failures live in
			// the entry status.
			return nil, pfx.Err(err)
		}

		state := result.(*pairState)
		o.store(key, state)
		out.Entries = append(out.Entries, state.entry)
	}

	return out, nil
}

// cachedEntry returns a usable cached entry. A pending entry only satisfies a
// non-preload request; ready and failed entries satisfy any request (failures
// are retried only when the caller explicitly forces).
func (o *Orchestrator) cachedEntry(key pairKey, preload bool) (ManifestEntry, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state, ok := o.pairs[key]
	if !ok {
		return ManifestEntry{}, false
	}
	if state.entry.Status == StatusPending && preload {
		return ManifestEntry{}, false
	}
	return state.entry, true
}

func (o *Orchestrator) store(key pairKey, state *pairState) {
	o.mu.Lock()
	o.pairs[key] = state
	o.mu.Unlock()
}

func (o *Orchestrator) evict(key pairKey) {
	o.mu.Lock()
	delete(o.pairs, key)
	o.mu.Unlock()
}

// buildPair produces the pair state for one secondary. All failure modes are
// captured in the entry; the fusion UI must be able to say "no registration
// available" instead of rendering a silently-misaligned overlay.
func (o *Orchestrator) buildPair(ctx context.Context, key pairKey, primaryInstances []Instance, opts Options) *pairState {
	state := &pairState{
		entry: ManifestEntry{
			SecondarySeriesID: key.Secondary,
			Status:            StatusPending,
			Instances:         primaryInstances,
		},
		buffers: make(map[string][]byte),
	}

	resolved, err := o.Resolve(ctx, key.Primary, key.Secondary)
	if err != nil {
		state.entry.Status = StatusFailed
		state.entry.Error = err.Error()
		return state
	}

	state.transform = resolved
	state.entry.TransformSource = resolved.Source
	state.entry.Confidence = resolved.Confidence
	state.entry.RegistrationID = resolved.RegistrationID

	secondaryInstances, err := o.Series.Instances(key.Secondary)
	if err != nil || len(secondaryInstances) == 0 {
		state.entry.Status = StatusFailed
		state.entry.Error = fmt.Sprintf("secondary series %s has no readable instances", key.Secondary)
		return state
	}

	if center, width, ok := o.Series.Window(key.Secondary); ok {
		state.entry.WindowCenter = center
		state.entry.WindowWidth = width
	}

	if !opts.Preload {
		return state
	}

	primaryFiles := instancePaths(primaryInstances)
	secondaryFiles := instancePaths(secondaryInstances)

	for i, inst := range primaryInstances {
		resp, err := o.Resampler.Resample(ctx, resampler.Request{
			PrimaryFiles:   primaryFiles,
			SecondaryFiles: secondaryFiles,
			Transform:      resolved.Matrix[:],
			SliceIndex:     i,
			Interpolation:  opts.Interpolation,
			IncludePrimary: opts.IncludePrimary,
		})
		if err != nil {
			// One systematic failure poisons every remaining slice; stop
			// instead of hammering a broken process.
			state.entry.Status = StatusFailed
			state.entry.Error = err.Error()
			return state
		}

		state.buffers[inst.SOPInstanceUID] = resp.Slice.Data

		if state.entry.WindowWidth == 0 {
			state.entry.WindowCenter = (resp.Slice.Max + resp.Slice.Min) / 2
			state.entry.WindowWidth = resp.Slice.Max - resp.Slice.Min
		}
	}

	state.entry.Status = StatusReady

	return state
}

// GetSliceBuffer returns the cached resampled buffer for one slice, or nil
// when absent. Strictly read-only: a miss never triggers a synchronous
// rebuild, and callers must not modify the returned bytes.
func (o *Orchestrator) GetSliceBuffer(primarySeriesID, secondarySeriesID, sopInstanceUID string) ([]byte, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state, ok := o.pairs[pairKey{Primary: primarySeriesID, Secondary: secondarySeriesID}]
	if !ok {
		return nil, false
	}

	buf, ok := state.buffers[sopInstanceUID]
	return buf, ok
}

// ClearCache evicts one pair, or every pair under the primary when
// secondarySeriesID is empty. Invalidation is always explicit and
// pair-scoped, never a side effect of unrelated writes.
func (o *Orchestrator) ClearCache(primarySeriesID, secondarySeriesID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if secondarySeriesID != "" {
		delete(o.pairs, pairKey{Primary: primarySeriesID, Secondary: secondarySeriesID})
		return
	}

	for key := range o.pairs {
		if key.Primary == primarySeriesID {
			delete(o.pairs, key)
		}
	}
}

// Transform returns the resolved transform a pair's buffers were generated
// from, if the pair is cached.
func (o *Orchestrator) Transform(primarySeriesID, secondarySeriesID string) (*framegraph.ResolvedTransform, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state, ok := o.pairs[pairKey{Primary: primarySeriesID, Secondary: secondarySeriesID}]
	if !ok || state.transform == nil {
		return nil, false
	}
	return state.transform, true
}

func flightKey(key pairKey) string {
	return key.Primary + "\x00" + key.Secondary
}

func instancePaths(instances []Instance) []string {
	out := make([]string, 0, len(instances))
	for _, inst := range instances {
		out = append(out, inst.Path)
	}
	return out
}
