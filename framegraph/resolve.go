// Package framegraph resolves a usable rigid transform between two
// frame-of-reference UIDs. Parsed candidates become a directed graph whose
// nodes are frames and whose edges are the candidates plus their algebraic
// inverses; a breadth-first search finds the shortest chain and composes it
// into one matrix. Shortest paths keep accumulated floating error down and
// make resolution reproducible.
package framegraph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/carbocation/pfx"

	"github.com/oncotools/regfusion/registration"
	"github.com/oncotools/regfusion/rigid"
)

var (
	// ErrNoRegistrationFound means the frames differ and no candidate exists
	// anywhere for the patient. Resolution never guesses identity; that
	// choice belongs to the caller.
	ErrNoRegistrationFound = errors.New("framegraph: no registration found")

	// ErrNoPathInGraph means candidates exist but no chain of them connects
	// the two frames.
	ErrNoPathInGraph = errors.New("framegraph: no path between frames")
)

// TransformSource records how a resolved transform came to be.
type TransformSource string

const (
	SourceDirect   TransformSource = "direct"
	SourceComposed TransformSource = "composed"
	SourceIdentity TransformSource = "identity"
)

// Confidence distinguishes transforms built purely from declared frame pairs
// from ones that somewhere relied on inferred frames.
type Confidence string

const (
	ConfidenceDeclared Confidence = "declared"
	ConfidenceInferred Confidence = "inferred"
)

// ResolvedTransform maps points from the secondary series' frame into the
// primary series' frame. Immutable once created; cache layers replace it
// wholesale, never mutate it.
type ResolvedTransform struct {
	Matrix          rigid.Matrix
	SourceFrame     string
	TargetFrame     string
	RegistrationID  string
	ProvenanceChain []string
	Source          TransformSource
	Confidence      Confidence
}

// Request carries everything resolution needs. Series UIDs participate only
// in candidate scoring; the actual lookup runs on frames.
type Request struct {
	PrimaryFrame    string
	SecondaryFrame  string
	PrimarySeries   string
	SecondarySeries string
	Candidates      []registration.Candidate
}

// Resolve finds the transform mapping the secondary frame into the primary
// frame. The identity check runs before any candidate is inspected: two
// series sharing a frame are by definition co-registered, and registration
// objects' claims about other pairs are irrelevant to that.
func Resolve(req Request) (*ResolvedTransform, error) {
	if req.PrimaryFrame == "" || req.SecondaryFrame == "" {
		return nil, pfx.Err(fmt.Errorf("framegraph: empty frame UID (primary %q, secondary %q)", req.PrimaryFrame, req.SecondaryFrame))
	}

	if req.PrimaryFrame == req.SecondaryFrame {
		return &ResolvedTransform{
			Matrix:      rigid.Identity(),
			SourceFrame: req.SecondaryFrame,
			TargetFrame: req.PrimaryFrame,
			Source:      SourceIdentity,
			Confidence:  ConfidenceDeclared,
		}, nil
	}

	if len(req.Candidates) == 0 {
		return nil, pfx.Err(fmt.Errorf("%w: frames %s and %s differ and the patient has no registration objects",
			ErrNoRegistrationFound, req.PrimaryFrame, req.SecondaryFrame))
	}

	graph := buildGraph(req)

	path, ok := graph.shortestPath(req.SecondaryFrame, req.PrimaryFrame)
	if !ok {
		return nil, pfx.Err(fmt.Errorf("%w: %s -> %s over %d candidates",
			ErrNoPathInGraph, req.SecondaryFrame, req.PrimaryFrame, len(req.Candidates)))
	}

	out := &ResolvedTransform{
		Matrix:      rigid.Identity(),
		SourceFrame: req.SecondaryFrame,
		TargetFrame: req.PrimaryFrame,
		Source:      SourceComposed,
		Confidence:  ConfidenceDeclared,
	}

	// Compose left-to-right: each hop's matrix is applied after everything
	// before it, so the chain collapses into M_k * ... * M_1.
	for _, e := range path {
		out.Matrix = rigid.Compose(e.matrix, out.Matrix)
		out.ProvenanceChain = append(out.ProvenanceChain, e.provenance())
		if e.candidate.FrameProvenance == registration.FrameProvenanceInferred {
			out.Confidence = ConfidenceInferred
		}
	}

	if len(path) == 1 {
		out.Source = SourceDirect
		out.RegistrationID = path[0].candidate.ID
	}

	return out, nil
}

type edge struct {
	from      string
	to        string
	matrix    rigid.Matrix
	candidate registration.Candidate
	inverted  bool
	score     int
}

func (e edge) provenance() string {
	p := e.candidate.ID
	if e.inverted {
		p += " (inverted)"
	}
	if e.candidate.FrameProvenance == registration.FrameProvenanceInferred {
		p += " (inferred frames)"
	}
	return p
}

type graph struct {
	// Exactly one edge per directed frame pair: competing candidates are
	// collapsed to the best-scoring one before the search, so a pair's
	// buffers always trace to a single consistent provenance.
	edges map[string]map[string]edge
}

// buildGraph contributes two edges per candidate, itself and its closed-form
// inverse, then collapses parallel edges by score.
func buildGraph(req Request) *graph {
	g := &graph{edges: make(map[string]map[string]edge)}

	for _, cand := range req.Candidates {
		if cand.SourceFrame == "" || cand.TargetFrame == "" || cand.SourceFrame == cand.TargetFrame {
			continue
		}

		score := scoreCandidate(cand, req)

		g.offer(edge{
			from:      cand.SourceFrame,
			to:        cand.TargetFrame,
			matrix:    cand.Matrix,
			candidate: cand,
			score:     score,
		})
		g.offer(edge{
			from:      cand.TargetFrame,
			to:        cand.SourceFrame,
			matrix:    rigid.Invert(cand.Matrix),
			candidate: cand,
			inverted:  true,
			score:     score,
		})
	}

	return g
}

// scoreCandidate ranks competing registration objects by evidence: explicit
// series references outweigh frame matches, which outweigh nothing at all.
func scoreCandidate(cand registration.Candidate, req Request) int {
	s := 0
	if req.PrimarySeries != "" && cand.ReferencesSeries(req.PrimarySeries) {
		s += 2
	}
	if req.SecondarySeries != "" && cand.ReferencesSeries(req.SecondarySeries) {
		s += 2
	}
	if cand.SourceFrame == req.SecondaryFrame || cand.TargetFrame == req.SecondaryFrame {
		s++
	}
	if cand.SourceFrame == req.PrimaryFrame || cand.TargetFrame == req.PrimaryFrame {
		s++
	}
	return s
}

func (g *graph) offer(e edge) {
	row, ok := g.edges[e.from]
	if !ok {
		row = make(map[string]edge)
		g.edges[e.from] = row
	}

	cur, exists := row[e.to]
	if !exists || betterEdge(e, cur) {
		row[e.to] = e
	}
}

// betterEdge is the deterministic ordering between two candidates for the
// same frame pair: score first, then non-identity rotation content (guarding
// against degenerate self-to-self objects), then later position in the file,
// mirroring the parser preference for the last non-identity matrix.
func betterEdge(a, b edge) bool {
	if a.score != b.score {
		return a.score > b.score
	}

	aRot := rigid.HasRotation(a.candidate.Matrix, 1e-9)
	bRot := rigid.HasRotation(b.candidate.Matrix, 1e-9)
	if aRot != bRot {
		return aRot
	}

	aIdent := rigid.IsIdentity(a.candidate.Matrix, 1e-9)
	bIdent := rigid.IsIdentity(b.candidate.Matrix, 1e-9)
	if aIdent != bIdent {
		return bIdent
	}

	if a.candidate.OriginFile != b.candidate.OriginFile {
		return a.candidate.OriginFile < b.candidate.OriginFile
	}
	return a.candidate.Index > b.candidate.Index
}

// shortestPath runs BFS from -> to. Neighbor expansion is in sorted frame
// order, so repeated calls over the same candidate set walk the same path.
func (g *graph) shortestPath(from, to string) ([]edge, bool) {
	type visit struct {
		frame string
		via   *edge
		prev  string
	}

	visited := map[string]visit{from: {frame: from}}
	queue := []string{from}

	for len(queue) > 0 {
		frame := queue[0]
		queue = queue[1:]

		if frame == to {
			var path []edge
			for at := to; at != from; {
				v := visited[at]
				path = append([]edge{*v.via}, path...)
				at = v.prev
			}
			return path, true
		}

		neighbors := make([]string, 0, len(g.edges[frame]))
		for next := range g.edges[frame] {
			neighbors = append(neighbors, next)
		}
		sort.Strings(neighbors)

		for _, next := range neighbors {
			if _, seen := visited[next]; seen {
				continue
			}
			e := g.edges[frame][next]
			visited[next] = visit{frame: next, via: &e, prev: frame}
			queue = append(queue, next)
		}
	}

	return nil, false
}
