package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/oncotools/regfusion/dicecheck"
	"github.com/oncotools/regfusion/framegraph"
	"github.com/oncotools/regfusion/fusion"
	"github.com/oncotools/regfusion/fusion/resampler"
)

type handler struct {
	Global *Global
	router *mux.Router
}

func (h *handler) Goroutines(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, http.StatusOK, map[string]int{"goroutines": runtime.NumGoroutine()})
}

// transformResponse is the wire shape of one resolved transform.
type transformResponse struct {
	Matrix          []float64                  `json:"matrix"`
	SourceFrame     string                     `json:"sourceFrame"`
	TargetFrame     string                     `json:"targetFrame"`
	RegistrationID  string                     `json:"registrationId,omitempty"`
	ProvenanceChain []string                   `json:"provenanceChain,omitempty"`
	Source          framegraph.TransformSource `json:"source"`
	Confidence      framegraph.Confidence      `json:"confidence"`
}

func newTransformResponse(t *framegraph.ResolvedTransform) transformResponse {
	return transformResponse{
		Matrix:          t.Matrix[:],
		SourceFrame:     t.SourceFrame,
		TargetFrame:     t.TargetFrame,
		RegistrationID:  t.RegistrationID,
		ProvenanceChain: t.ProvenanceChain,
		Source:          t.Source,
		Confidence:      t.Confidence,
	}
}

func (h *handler) Resolve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	resolved, err := h.Global.resolver.Resolve(r.Context(), vars["primary"], vars["secondary"], r.FormValue("registration"))
	if err != nil {
		h.HTTPError(w, r, resolveStatus(err), err)
		return
	}

	JSONResponse(w, http.StatusOK, newTransformResponse(resolved))
}

func (h *handler) FusionManifest(w http.ResponseWriter, r *http.Request) {
	primary := mux.Vars(r)["primary"]

	secondaries := splitList(r.URL.Query()["secondary"])
	if len(secondaries) == 0 {
		h.HTTPError(w, r, http.StatusBadRequest, fmt.Errorf("at least one ?secondary= series is required"))
		return
	}

	opts := fusion.Options{
		Force:          boolParam(r, "force"),
		Preload:        boolParam(r, "preload"),
		Interpolation:  resampler.Interpolation(r.FormValue("interpolation")),
		IncludePrimary: h.Global.Config.IncludePrimary,
	}
	if opts.Interpolation == "" {
		opts.Interpolation = resampler.Interpolation(h.Global.Config.DefaultInterpolation)
	}

	manifest, err := h.Global.orchestrator.GetManifest(r.Context(), primary, secondaries, opts)
	if err != nil {
		h.HTTPError(w, r, http.StatusInternalServerError, err)
		return
	}

	JSONResponse(w, http.StatusOK, manifest)
}

func (h *handler) FusionSlice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	buf, ok := h.Global.orchestrator.GetSliceBuffer(vars["primary"], vars["secondary"], vars["sop"])
	if !ok {
		h.HTTPError(w, r, http.StatusNotFound, fmt.Errorf("no cached buffer for %s/%s/%s; request the manifest with preload first", vars["primary"], vars["secondary"], vars["sop"]))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	w.Write(buf)
}

func (h *handler) FusionClear(w http.ResponseWriter, r *http.Request) {
	primary := mux.Vars(r)["primary"]
	secondary := r.FormValue("secondary")

	h.Global.orchestrator.ClearCache(primary, secondary)

	JSONResponse(w, http.StatusOK, map[string]string{
		"cleared":   primary,
		"secondary": secondary,
	})
}

func (h *handler) Dice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	primary, secondary := vars["primary"], vars["secondary"]

	resolved, err := h.Global.resolver.Resolve(r.Context(), primary, secondary, r.FormValue("registration"))
	if err != nil {
		h.HTTPError(w, r, resolveStatus(err), err)
		return
	}

	summary, err := h.Global.validator.Validate(primary, secondary, resolved.Matrix, dicecheck.Variant(r.FormValue("variant")))
	if err != nil {
		h.HTTPError(w, r, http.StatusInternalServerError, err)
		return
	}

	JSONResponse(w, http.StatusOK, struct {
		Transform transformResponse  `json:"transform"`
		Summary   *dicecheck.Summary `json:"summary"`
	}{newTransformResponse(resolved), summary})
}

func (h *handler) DiceScan(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	primary, secondary := vars["primary"], vars["secondary"]

	patientID, _, err := h.Global.dir.FindSeries(primary)
	if err != nil {
		h.HTTPError(w, r, http.StatusNotFound, err)
		return
	}

	candidates, err := h.Global.resolver.Candidates(patientID, r.FormValue("registration"))
	if err != nil {
		h.HTTPError(w, r, http.StatusInternalServerError, err)
		return
	}

	ranked, err := h.Global.validator.Scan(primary, secondary, candidates)
	if err != nil {
		h.HTTPError(w, r, http.StatusInternalServerError, err)
		return
	}

	JSONResponse(w, http.StatusOK, ranked)
}

// resolveStatus maps resolution failures onto HTTP codes: a missing or
// unconnected registration is a 404 the viewer can message, anything else is a
// server fault.
func resolveStatus(err error) int {
	if errors.Is(err, framegraph.ErrNoRegistrationFound) || errors.Is(err, framegraph.ErrNoPathInGraph) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// HTTPError tags the failure with a request ID so a viewer-reported error can
// be matched to its log line.
func (h *handler) HTTPError(w http.ResponseWriter, r *http.Request, status int, err error) {
	id := uuid.NewString()
	h.Global.log.Printf("[%s] %s %s: %v\n", id, r.Method, r.URL.Path, err)

	JSONResponse(w, status, map[string]string{
		"error":     err.Error(),
		"requestId": id,
	})
}

func JSONResponse(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func boolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.FormValue(name))
	return v
}
