package resampler

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func encodePlane(w, h int, values []float32) string {
	buf := make([]byte, 0, len(values)*4)
	for _, v := range values {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
		buf = append(buf, b[:]...)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func TestDecodeFlatResponse(t *testing.T) {
	payload := map[string]interface{}{
		"width":  2,
		"height": 2,
		"min":    -1000.0,
		"max":    500.0,
		"data":   encodePlane(2, 2, []float32{-1000, 0, 250, 500}),
	}
	bts, _ := json.Marshal(payload)

	var envelope wireEnvelope
	if err := json.Unmarshal(bts, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	resp, err := envelope.decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Slice.Width != 2 || resp.Slice.Height != 2 {
		t.Fatalf("plane dims = %dx%d", resp.Slice.Width, resp.Slice.Height)
	}
	if len(resp.Slice.Data) != 16 {
		t.Fatalf("buffer is %d bytes, want 16", len(resp.Slice.Data))
	}
	if resp.Slice.Min != -1000 || resp.Slice.Max != 500 {
		t.Fatalf("range = [%v, %v]", resp.Slice.Min, resp.Slice.Max)
	}
}

func TestDecodeBlendResponse(t *testing.T) {
	plane := map[string]interface{}{
		"width":  1,
		"height": 1,
		"min":    0.0,
		"max":    1.0,
		"data":   encodePlane(1, 1, []float32{0.5}),
	}
	payload := map[string]interface{}{
		"sliceIndex": 3,
		"primary":    plane,
		"secondary":  plane,
		"blend":      plane,
	}
	bts, _ := json.Marshal(payload)

	var envelope wireEnvelope
	if err := json.Unmarshal(bts, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	resp, err := envelope.decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Primary == nil || resp.Blend == nil {
		t.Fatal("includePrimary response missing primary or blend plane")
	}
}

func TestDecodeErrorResponse(t *testing.T) {
	var envelope wireEnvelope
	if err := json.Unmarshal([]byte(`{"error": "sliceIndex 99 not in [0,63]"}`), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	_, err := envelope.decode()
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("error = %v, want ErrFailed", err)
	}
}

func TestDecodeRejectsTruncatedBuffer(t *testing.T) {
	payload := map[string]interface{}{
		"width":  4,
		"height": 4,
		"min":    0.0,
		"max":    1.0,
		"data":   encodePlane(1, 1, []float32{1}),
	}
	bts, _ := json.Marshal(payload)

	var envelope wireEnvelope
	if err := json.Unmarshal(bts, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if _, err := envelope.decode(); !errors.Is(err, ErrFailed) {
		t.Fatalf("truncated buffer: error = %v, want ErrFailed", err)
	}
}

func TestLastJSONLineSkipsChatter(t *testing.T) {
	out := []byte("FUSION: loading primary files\nFUSION: resampling\n{\"error\":\"boom\"}\n")
	if got, want := string(lastJSONLine(out)), `{"error":"boom"}`; got != want {
		t.Fatalf("lastJSONLine = %q, want %q", got, want)
	}
}
