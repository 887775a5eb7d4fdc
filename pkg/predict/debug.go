package predict

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/leafwise/leaf-analyzer/pkg/types"
)

// Debug cycles through the label set on successive calls. Useful for
// exercising consumers against every label without models or a seeded
// fallback distribution.
type Debug struct {
	calls atomic.Uint64
}

// NewDebug creates a debug predictor.
func NewDebug() *Debug {
	return &Debug{}
}

// Predict returns the next label in the set with fixed confidence and a
// severity that identifies the call ordinal.
func (p *Debug) Predict(_ context.Context, _ Input) (types.DetectionResult, error) {
	n := p.calls.Add(1) - 1
	return types.DetectionResult{
		Disease:    types.Labels[n%uint64(len(types.Labels))],
		Confidence: 0.99,
		Severity:   float64(n % 100),
		Timestamp:  time.Now(),
	}, nil
}
