// Package model owns the two ONNX interpreters behind the diagnosis
// pipeline: the disease classifier and the tissue segmentation model.
package model

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/leafwise/leaf-analyzer/pkg/types"
)

var (
	// ErrNotReady is returned for inference calls before a successful Load
	// or after Close.
	ErrNotReady = errors.New("model runtime is not ready")

	// ErrModelMissing means a model artifact was not found on disk.
	ErrModelMissing = errors.New("model artifact missing")

	// ErrUnsupportedModel means an artifact uses operator versions newer
	// than the runtime supports. Callers typically fall back instead of
	// retrying.
	ErrUnsupportedModel = errors.New("model uses unsupported operator version")

	// ErrInference is a runtime fault during classify or segment.
	ErrInference = errors.New("inference failed")
)

// Config names the two model artifacts.
type Config struct {
	ClassifierPath   string
	SegmentationPath string
}

// Runtime holds both loaded sessions. Load must succeed before Classify or
// Segment; Close releases both handles exactly once.
type Runtime struct {
	mu         sync.Mutex
	classifier *session
	segmenter  *session
	ready      bool
}

// session wraps one ONNX session with its pre-allocated IO tensors.
type session struct {
	sess *ort.AdvancedSession
	in   *ort.Tensor[float32]
	out  *ort.Tensor[float32]
}

// NewRuntime creates an unloaded runtime.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// Load initializes the ONNX environment and creates both sessions. A missing
// artifact and an unsupported artifact surface as distinct errors so the
// caller can decide whether falling back makes sense.
func (r *Runtime) Load(cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ready {
		return nil
	}

	for _, path := range []string{cfg.ClassifierPath, cfg.SegmentationPath} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%w: %s", ErrModelMissing, path)
		}
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	classifier, err := newSession(cfg.ClassifierPath, types.NumClasses)
	if err != nil {
		ort.DestroyEnvironment()
		return fmt.Errorf("classifier: %w", err)
	}

	segmenter, err := newSession(cfg.SegmentationPath, types.MaskSize)
	if err != nil {
		classifier.destroy()
		ort.DestroyEnvironment()
		return fmt.Errorf("segmentation: %w", err)
	}

	r.classifier = classifier
	r.segmenter = segmenter
	r.ready = true
	return nil
}

func newSession(modelPath string, outputLen int64) (*session, error) {
	inputShape := ort.NewShape(1, types.TensorHeight, types.TensorWidth, types.TensorChannels)
	outputShape := ort.NewShape(1, outputLen)

	in, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	out, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		in.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	sess, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{in}, []ort.ArbitraryTensor{out},
		nil)
	if err != nil {
		in.Destroy()
		out.Destroy()
		return nil, classifyLoadError(err)
	}

	return &session{sess: sess, in: in, out: out}, nil
}

// classifyLoadError separates unsupported-operator failures from other load
// faults based on the runtime's error text.
func classifyLoadError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"opset", "ir_version", "unsupported model", "version"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrUnsupportedModel, err)
		}
	}
	return fmt.Errorf("failed to create ONNX session: %w", err)
}

// Classify runs the disease classifier and returns a copy of the raw
// 5-element output vector. Pure with respect to the input tensor.
func (r *Runtime) Classify(t *types.Tensor) ([]float32, error) {
	return r.run(func() *session { return r.classifier }, t)
}

// Segment runs the segmentation model and returns a copy of the raw
// 224*224-element mask vector with values in [0,1].
func (r *Runtime) Segment(t *types.Tensor) ([]float32, error) {
	return r.run(func() *session { return r.segmenter }, t)
}

func (r *Runtime) run(pick func() *session, t *types.Tensor) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		return nil, ErrNotReady
	}
	if t == nil || len(t.Data) != types.TensorSize {
		return nil, fmt.Errorf("%w: input tensor has wrong shape", ErrInference)
	}

	s := pick()
	copy(s.in.GetData(), t.Data)
	if err := s.sess.Run(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	out := make([]float32, len(s.out.GetData()))
	copy(out, s.out.GetData())
	return out, nil
}

// Ready reports whether both models are loaded.
func (r *Runtime) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// Close releases both model handles. Inference calls after Close fail with
// ErrNotReady. Safe to call more than once.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		return
	}
	r.classifier.destroy()
	r.segmenter.destroy()
	r.classifier = nil
	r.segmenter = nil
	r.ready = false
	ort.DestroyEnvironment()
}

func (s *session) destroy() {
	if s == nil {
		return
	}
	if s.in != nil {
		s.in.Destroy()
	}
	if s.out != nil {
		s.out.Destroy()
	}
	if s.sess != nil {
		s.sess.Destroy()
	}
}
