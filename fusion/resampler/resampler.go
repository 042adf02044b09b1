// Package resampler defines the boundary to the external volumetric
// resampler: an opaque, potentially slow, potentially failing process that
// regrids a secondary series onto the primary grid one slice at a time.
package resampler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means the resampler process could not be started or
	// produced no parseable output at all.
	ErrUnavailable = errors.New("resampler: unavailable")

	// ErrFailed means the process ran and reported an error of its own; the
	// process's message is surfaced verbatim. Never retried automatically,
	// so systematic misconfiguration stays visible.
	ErrFailed = errors.New("resampler: failed")
)

// Interpolation selects the resampling kernel.
type Interpolation string

const (
	InterpolationLinear  Interpolation = "linear"
	InterpolationNearest Interpolation = "nearest"
)

// Request is the per-slice input contract. Files are ordered along the slice
// normal before they get here. Exactly one of Transform or TransformFile is
// set.
type Request struct {
	PrimaryFiles   []string      `json:"primary"`
	SecondaryFiles []string      `json:"secondary"`
	Transform      []float64     `json:"transform,omitempty"`
	TransformFile  string        `json:"transformFile,omitempty"`
	SliceIndex     int           `json:"sliceIndex"`
	Interpolation  Interpolation `json:"interpolation"`
	IncludePrimary bool          `json:"includePrimary,omitempty"`
}

// Plane is one decoded float32 raster.
type Plane struct {
	Width  int
	Height int
	Min    float64
	Max    float64
	Data   []byte // little-endian float32, Width*Height*4 bytes
}

// Response holds the resampled slice, plus the primary and blend planes when
// the request asked for them.
type Response struct {
	Slice   Plane
	Primary *Plane
	Blend   *Plane
}

// Client is implemented by anything that can run one resample. The context
// governs cancellation: an abandoned request must not leave the external
// process running.
type Client interface {
	Resample(ctx context.Context, req Request) (*Response, error)
}

// wirePlane mirrors the process's JSON plane payload.
type wirePlane struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Data   string  `json:"data"`
}

// wireEnvelope covers both response shapes: the flat single-plane form and
// the includePrimary form with nested planes, plus the error form.
type wireEnvelope struct {
	wirePlane
	Error     string     `json:"error"`
	Primary   *wirePlane `json:"primary"`
	Secondary *wirePlane `json:"secondary"`
	Blend     *wirePlane `json:"blend"`
}

func (w *wirePlane) decode() (Plane, error) {
	raw, err := base64.StdEncoding.DecodeString(w.Data)
	if err != nil {
		return Plane{}, fmt.Errorf("decoding plane payload: %v", err)
	}

	if want := w.Width * w.Height * 4; len(raw) != want {
		return Plane{}, fmt.Errorf("plane payload is %d bytes, expected %d for %dx%d float32", len(raw), want, w.Width, w.Height)
	}

	return Plane{
		Width:  w.Width,
		Height: w.Height,
		Min:    w.Min,
		Max:    w.Max,
		Data:   raw,
	}, nil
}

func (w *wireEnvelope) decode() (*Response, error) {
	if w.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrFailed, w.Error)
	}

	out := &Response{}

	if w.Secondary != nil {
		// includePrimary form.
		slice, err := w.Secondary.decode()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailed, err)
		}
		out.Slice = slice

		if w.Primary != nil {
			p, err := w.Primary.decode()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrFailed, err)
			}
			out.Primary = &p
		}
		if w.Blend != nil {
			b, err := w.Blend.decode()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrFailed, err)
			}
			out.Blend = &b
		}

		return out, nil
	}

	slice, err := w.wirePlane.decode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	out.Slice = slice

	return out, nil
}
