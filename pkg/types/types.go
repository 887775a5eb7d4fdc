package types

import "time"

// Tensor layout expected by both models: batch 1, 224x224 RGB, NHWC.
const (
	TensorWidth    = 224
	TensorHeight   = 224
	TensorChannels = 3
	TensorSize     = TensorWidth * TensorHeight * TensorChannels

	// MaskSize is the length of the segmentation output vector.
	MaskSize = TensorWidth * TensorHeight

	// NumClasses is the length of the classification output vector.
	NumClasses = 5
)

// Labels is the fixed disease label set. Position in the slice is the
// classifier's class index; never mutated at runtime.
var Labels = []string{
	"Healthy",
	"Bacterial Spot",
	"Early Blight",
	"Late Blight",
	"Leaf Mold",
}

// Tensor is a dense float buffer holding one normalized model input.
// Values are in [0,1], laid out batch-height-width-channel.
type Tensor struct {
	Data []float32
}

// NewTensor allocates a zeroed tensor of the model input size.
func NewTensor() *Tensor {
	return &Tensor{Data: make([]float32, TensorSize)}
}

// Plane is one image plane of a camera frame.
type Plane struct {
	Bytes       []byte
	RowStride   int // bytes per row; 0 means tightly packed
	PixelStride int // bytes per sample; 0 means 1
}

// Frame is a raw multi-plane camera frame (typically YUV 4:2:0).
type Frame struct {
	Width  int
	Height int
	Planes []Plane
}

// DetectionResult is the immutable outcome of one analysis call.
type DetectionResult struct {
	Disease    string    `json:"disease"`
	Confidence float64   `json:"confidence"` // [0,1]
	Severity   float64   `json:"severity"`   // [0,100], % of diseased pixels
	Timestamp  time.Time `json:"timestamp"`
}

// Record flattens the result into the key→value form used by history and
// display collaborators. The timestamp is ISO-8601 text.
func (r DetectionResult) Record() map[string]any {
	return map[string]any{
		"disease":    r.Disease,
		"confidence": r.Confidence,
		"severity":   r.Severity,
		"timestamp":  r.Timestamp.Format(time.RFC3339),
	}
}

// ResultFromRecord reconstructs a DetectionResult from a flat record.
// Missing or malformed keys fall back to "Unknown", 0.0 and the current time.
func ResultFromRecord(rec map[string]any) DetectionResult {
	res := DetectionResult{
		Disease:   "Unknown",
		Timestamp: time.Now(),
	}
	if v, ok := rec["disease"].(string); ok {
		res.Disease = v
	}
	if v, ok := toFloat(rec["confidence"]); ok {
		res.Confidence = v
	}
	if v, ok := toFloat(rec["severity"]); ok {
		res.Severity = v
	}
	if v, ok := rec["timestamp"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			res.Timestamp = ts
		}
	}
	return res
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
