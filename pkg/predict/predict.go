// Package predict defines the prediction strategies behind the analysis
// pipeline. Exactly one strategy is selected when the service loads: the
// model-backed predictor when both ONNX models are usable, the deterministic
// fallback when they are not, or the debug predictor for development builds.
// Strategy selection never happens per call.
package predict

import (
	"context"

	"github.com/leafwise/leaf-analyzer/pkg/types"
)

// Input carries everything a predictor may need for one call. The tensor is
// only populated on the model path; the fingerprint is always present.
type Input struct {
	Tensor      *types.Tensor
	Fingerprint string
}

// Predictor produces a DetectionResult for one image.
type Predictor interface {
	Predict(ctx context.Context, in Input) (types.DetectionResult, error)
}
