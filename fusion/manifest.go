// Package fusion orchestrates resampling a secondary series onto a primary
// series' grid: it resolves transforms, drives the external resampler once
// per slice, and caches the resulting buffers per (primary, secondary) pair.
package fusion

import (
	"github.com/oncotools/regfusion/framegraph"
)

// Status is the lifecycle of one manifest entry.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Instance describes one primary slice position in the manifest.
type Instance struct {
	SOPInstanceUID string `json:"sopInstanceUid"`
	InstanceNumber int    `json:"instanceNumber"`
	FileName       string `json:"fileName"`
	Path           string `json:"-"`
}

// ManifestEntry is the per-secondary record consumed by the viewer.
type ManifestEntry struct {
	SecondarySeriesID string                      `json:"secondarySeriesId"`
	Status            Status                      `json:"status"`
	Error             string                      `json:"error,omitempty"`
	TransformSource   framegraph.TransformSource  `json:"transformSource,omitempty"`
	Confidence        framegraph.Confidence       `json:"confidence,omitempty"`
	RegistrationID    string                      `json:"registrationId,omitempty"`
	Instances         []Instance                  `json:"instances"`
	WindowCenter      float64                     `json:"windowCenter"`
	WindowWidth       float64                     `json:"windowWidth"`
}

// Manifest is the full response for one primary series.
type Manifest struct {
	PrimarySeriesID string          `json:"primarySeriesId"`
	Entries         []ManifestEntry `json:"entries"`
}
