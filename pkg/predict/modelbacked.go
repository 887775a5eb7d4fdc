package predict

import (
	"context"
	"fmt"
	"time"

	"github.com/leafwise/leaf-analyzer/pkg/model"
	"github.com/leafwise/leaf-analyzer/pkg/severity"
	"github.com/leafwise/leaf-analyzer/pkg/types"
)

// ModelBacked runs genuine inference: one classifier pass for the disease
// label and one segmentation pass for severity.
type ModelBacked struct {
	runtime *model.Runtime
}

// NewModelBacked creates a predictor over a loaded runtime.
func NewModelBacked(runtime *model.Runtime) *ModelBacked {
	return &ModelBacked{runtime: runtime}
}

// Predict classifies and segments the input tensor. Inference faults surface
// to the caller; this predictor never degrades to the fallback on its own.
func (p *ModelBacked) Predict(_ context.Context, in Input) (types.DetectionResult, error) {
	if in.Tensor == nil {
		return types.DetectionResult{}, fmt.Errorf("%w: no input tensor", model.ErrInference)
	}

	scores, err := p.runtime.Classify(in.Tensor)
	if err != nil {
		return types.DetectionResult{}, err
	}

	mask, err := p.runtime.Segment(in.Tensor)
	if err != nil {
		return types.DetectionResult{}, err
	}

	idx, confidence := argmax(scores)
	return types.DetectionResult{
		Disease:    types.Labels[idx],
		Confidence: confidence,
		Severity:   severity.FromMask(mask),
		Timestamp:  time.Now(),
	}, nil
}

// argmax returns the first-seen maximum. The raw output value is reported as
// confidence without a normalizing transform such as softmax, so it is not a
// calibrated probability.
func argmax(scores []float32) (int, float64) {
	maxIdx := 0
	maxVal := scores[0]
	for i, v := range scores {
		if i < len(types.Labels) && v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}
	return maxIdx, float64(maxVal)
}
