// Package leafanalyzer diagnoses plant-leaf disease from a single image.
//
// The package converts raw image bytes or camera frames into a model-ready
// tensor, runs two neural-network passes (disease classification and
// pixel-level segmentation of affected tissue), derives a severity score and
// packages the result. When the model path is unavailable or incompatible,
// a deterministic, content-addressed synthetic predictor takes its place:
// identical visual input always yields identical output, and repeated calls
// are answered from a result cache.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//		"os"
//
//		leafanalyzer "github.com/leafwise/leaf-analyzer"
//	)
//
//	func main() {
//		svc := leafanalyzer.New()
//		defer svc.Dispose()
//
//		if err := svc.Load(context.Background()); err != nil {
//			log.Fatal(err)
//		}
//
//		data, err := os.ReadFile("leaf.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		result, err := svc.Analyze(context.Background(), data)
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("%s (%.0f%% affected, confidence %.2f)\n",
//			result.Disease, result.Severity, result.Confidence)
//	}
//
// The package consists of these components:
//
// 1. Preprocess (pkg/preprocess): decoding and tensor conversion
// 2. Model (pkg/model): the two ONNX interpreters
// 3. Fingerprint (pkg/fingerprint): content-addressed image identifiers
// 4. Predict (pkg/predict): model-backed, fallback and debug strategies
// 5. Cache (pkg/cache): fingerprint-keyed result cache
// 6. Overlay (pkg/overlay): segmentation mask rendering
// 7. Advisor (pkg/advisor): optional Ollama-backed care advice
//
// The service runs one analysis at a time in normal use; the calling layer
// is expected to disable its trigger while a call is outstanding. Concurrent
// calls are not rejected — cache writes are idempotent because both
// predictors are pure functions of their input — but Dispose during an
// in-flight call leaves that call's outcome undefined, so callers should
// await outstanding calls before disposing.
package leafanalyzer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/leafwise/leaf-analyzer/internal/config"
	"github.com/leafwise/leaf-analyzer/pkg/cache"
	"github.com/leafwise/leaf-analyzer/pkg/fingerprint"
	"github.com/leafwise/leaf-analyzer/pkg/model"
	"github.com/leafwise/leaf-analyzer/pkg/overlay"
	"github.com/leafwise/leaf-analyzer/pkg/predict"
	"github.com/leafwise/leaf-analyzer/pkg/preprocess"
	"github.com/leafwise/leaf-analyzer/pkg/types"
)

// Version of the leaf analyzer library
const Version = "1.0.0"

// ErrNotReady is returned by Analyze outside the Ready/FallbackReady states
// and by Highlight when no model is loaded.
var ErrNotReady = model.ErrNotReady

// State is the service lifecycle state.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady         // model path active
	StateFallbackReady // deterministic fallback active
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFallbackReady:
		return "fallback-ready"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Config controls service construction.
type Config struct {
	ClassifierPath   string
	SegmentationPath string
	// CacheCapacity bounds the result cache; 0 keeps it unbounded for the
	// service lifetime.
	CacheCapacity int
	// ContinueOnLoadFailure switches to the deterministic fallback when
	// model loading fails instead of surfacing the error.
	ContinueOnLoadFailure bool
	// DebugPredictor selects the label-cycling debug strategy regardless of
	// model availability.
	DebugPredictor bool
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	cfg := config.Default()
	return fromAppConfig(cfg)
}

func fromAppConfig(cfg *config.Config) Config {
	return Config{
		ClassifierPath:        cfg.Models.ClassifierPath,
		SegmentationPath:      cfg.Models.SegmentationPath,
		CacheCapacity:         cfg.Cache.Capacity,
		ContinueOnLoadFailure: cfg.Service.ContinueOnLoadFailure,
		DebugPredictor:        cfg.Service.DebugPredictor,
	}
}

// Service is the single entry point for leaf analysis. It owns the two model
// handles and the result cache; neither is shared across instances.
type Service struct {
	cfg Config

	mu        sync.Mutex
	state     State
	runtime   *model.Runtime
	predictor predict.Predictor
	results   *cache.ResultCache
}

// New creates an unloaded service with the default configuration.
func New() *Service {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an unloaded service with a custom configuration.
func NewWithConfig(cfg Config) *Service {
	return &Service{
		cfg:     cfg,
		state:   StateUnloaded,
		runtime: model.NewRuntime(),
		results: cache.NewWithCapacity(cfg.CacheCapacity),
	}
}

// NewFromEnvironment creates a service configured from environment variables
// (and a .env file when present).
func NewFromEnvironment() (*Service, error) {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewWithConfig(fromAppConfig(cfg)), nil
}

// Load loads both models and selects the prediction strategy. On load
// failure with ContinueOnLoadFailure set, the service continues degraded
// with the deterministic fallback; otherwise the error is surfaced and the
// service returns to Unloaded. Fallback selection happens here and only
// here — inference failures at call time are never downgraded.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUnloaded {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("load is only valid in the unloaded state (current: %s)", state)
	}
	s.state = StateLoading
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		s.setState(StateUnloaded)
		return err
	}

	if s.cfg.DebugPredictor {
		s.mu.Lock()
		s.predictor = predict.NewDebug()
		s.state = StateFallbackReady
		s.mu.Unlock()
		log.Printf("leafanalyzer: debug predictor selected")
		return nil
	}

	err := s.runtime.Load(model.Config{
		ClassifierPath:   s.cfg.ClassifierPath,
		SegmentationPath: s.cfg.SegmentationPath,
	})
	if err == nil {
		s.mu.Lock()
		s.predictor = predict.NewModelBacked(s.runtime)
		s.state = StateReady
		s.mu.Unlock()
		return nil
	}

	if s.cfg.ContinueOnLoadFailure {
		log.Printf("leafanalyzer: model load failed (%v), continuing with deterministic fallback", err)
		s.mu.Lock()
		s.predictor = predict.NewFallback()
		s.state = StateFallbackReady
		s.mu.Unlock()
		return nil
	}

	s.setState(StateUnloaded)
	return err
}

// Analyze diagnoses one encoded image. The image is fingerprinted first, the
// cache consulted, and only on a miss does the selected predictor run; the
// result is cached before returning. For a fixed input, sequential calls
// return identical results.
func (s *Service) Analyze(ctx context.Context, imageData []byte) (types.DetectionResult, error) {
	return s.analyze(ctx, fingerprint.FromBytes(imageData), func() (*types.Tensor, error) {
		return preprocess.ToTensor(imageData)
	})
}

// AnalyzeFrame diagnoses one raw camera frame.
func (s *Service) AnalyzeFrame(ctx context.Context, frame types.Frame) (types.DetectionResult, error) {
	return s.analyze(ctx, fingerprint.FromFrame(frame), func() (*types.Tensor, error) {
		return preprocess.FrameToTensor(frame)
	})
}

func (s *Service) analyze(ctx context.Context, fp string, toTensor func() (*types.Tensor, error)) (types.DetectionResult, error) {
	s.mu.Lock()
	state := s.state
	predictor := s.predictor
	s.mu.Unlock()

	if state != StateReady && state != StateFallbackReady {
		return types.DetectionResult{}, ErrNotReady
	}

	if res, ok := s.results.Get(fp); ok {
		return res, nil
	}

	in := predict.Input{Fingerprint: fp}
	if state == StateReady {
		tensor, err := toTensor()
		if err != nil {
			return types.DetectionResult{}, err
		}
		in.Tensor = tensor
	}

	res, err := predictor.Predict(ctx, in)
	if err != nil {
		return types.DetectionResult{}, err
	}

	s.results.Put(fp, res)
	return res, nil
}

// Highlight runs the segmentation model on an encoded image and returns the
// image with diseased tissue tinted, encoded in the requested format. Only
// available on the model path.
func (s *Service) Highlight(ctx context.Context, imageData []byte, format string, quality int) ([]byte, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state != StateReady {
		return nil, ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, tensor, err := preprocess.DecodeAndTensor(imageData)
	if err != nil {
		return nil, err
	}

	mask, err := s.runtime.Segment(tensor)
	if err != nil {
		return nil, err
	}

	rendered, err := overlay.Render(img, mask)
	if err != nil {
		return nil, err
	}
	return overlay.Encode(rendered, format, quality)
}

// CacheStats exposes result cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.results.Stats()
}

// CurrentState returns the lifecycle state.
func (s *Service) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispose releases both model handles and clears the result cache. The
// service is terminal afterwards: Analyze fails with ErrNotReady and Load is
// rejected. Safe to call more than once.
func (s *Service) Dispose() {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return
	}
	s.state = StateDisposed
	s.predictor = nil
	s.mu.Unlock()

	s.runtime.Close()
	s.results.Clear()
}

func (s *Service) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// IsLoadFailure reports whether an error from Load is a model load problem
// (missing artifact or unsupported operator version) rather than a lifecycle
// misuse.
func IsLoadFailure(err error) bool {
	return errors.Is(err, model.ErrModelMissing) || errors.Is(err, model.ErrUnsupportedModel)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
