package leafanalyzer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leafwise/leaf-analyzer/pkg/types"
)

// fallbackConfig points at artifacts that do not exist, so Load degrades to
// the deterministic fallback.
func fallbackConfig() Config {
	cfg := DefaultConfig()
	cfg.ClassifierPath = "/nonexistent/plant_disease_classifier.onnx"
	cfg.SegmentationPath = "/nonexistent/plant_disease_segmentation.onnx"
	return cfg
}

// createTestJPEG encodes a simple leaf-like test image
func createTestJPEG(t *testing.T, seed uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 160, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 160; x++ {
			img.Set(x, y, color.RGBA{seed, uint8(150 + int(seed)%100), 40, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}))
	return buf.Bytes()
}

func TestAnalyzeBeforeLoad(t *testing.T) {
	svc := NewWithConfig(fallbackConfig())
	defer svc.Dispose()

	_, err := svc.Analyze(context.Background(), createTestJPEG(t, 10))
	require.ErrorIs(t, err, ErrNotReady)
}

func TestLoadDegradesToFallback(t *testing.T) {
	svc := NewWithConfig(fallbackConfig())
	defer svc.Dispose()

	require.NoError(t, svc.Load(context.Background()))
	require.Equal(t, StateFallbackReady, svc.CurrentState())
}

func TestLoadSurfacesFailureWhenFallbackDisallowed(t *testing.T) {
	cfg := fallbackConfig()
	cfg.ContinueOnLoadFailure = false
	svc := NewWithConfig(cfg)
	defer svc.Dispose()

	err := svc.Load(context.Background())
	require.Error(t, err)
	require.True(t, IsLoadFailure(err))
	require.Equal(t, StateUnloaded, svc.CurrentState())

	// Analysis is still rejected, never a zero-value result.
	_, err = svc.Analyze(context.Background(), createTestJPEG(t, 10))
	require.ErrorIs(t, err, ErrNotReady)
}

func TestAnalyzeIdempotent(t *testing.T) {
	svc := NewWithConfig(fallbackConfig())
	defer svc.Dispose()
	require.NoError(t, svc.Load(context.Background()))

	data := createTestJPEG(t, 42)

	first, err := svc.Analyze(context.Background(), data)
	require.NoError(t, err)
	second, err := svc.Analyze(context.Background(), data)
	require.NoError(t, err)

	// Cache hit must be bit-identical, timestamp included.
	require.Equal(t, first, second)

	stats := svc.CacheStats()
	require.Equal(t, uint64(1), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
	require.Equal(t, 1, stats.Entries)
}

func TestAnalyzeResultRanges(t *testing.T) {
	svc := NewWithConfig(fallbackConfig())
	defer svc.Dispose()
	require.NoError(t, svc.Load(context.Background()))

	for seed := 0; seed < 50; seed++ {
		res, err := svc.Analyze(context.Background(), createTestJPEG(t, uint8(seed*5)))
		require.NoError(t, err)

		require.Contains(t, types.Labels, res.Disease)
		require.GreaterOrEqual(t, res.Confidence, 0.65)
		require.LessOrEqual(t, res.Confidence, 0.95)
		require.GreaterOrEqual(t, res.Severity, 0.0)
		require.LessOrEqual(t, res.Severity, 85.0)
		require.False(t, res.Timestamp.IsZero())
	}
}

func TestAnalyzeUnreadableBytesStillAnswers(t *testing.T) {
	// Fingerprinting degrades instead of failing, so even junk bytes get a
	// (generic) diagnosis on the fallback path.
	svc := NewWithConfig(fallbackConfig())
	defer svc.Dispose()
	require.NoError(t, svc.Load(context.Background()))

	res, err := svc.Analyze(context.Background(), []byte("not an image at all"))
	require.NoError(t, err)
	require.Contains(t, types.Labels, res.Disease)
}

func TestAnalyzeFrame(t *testing.T) {
	svc := NewWithConfig(fallbackConfig())
	defer svc.Dispose()
	require.NoError(t, svc.Load(context.Background()))

	buf := make([]byte, 64*48)
	for i := range buf {
		buf[i] = byte(i)
	}
	frame := types.Frame{
		Width:  64,
		Height: 48,
		Planes: []types.Plane{{Bytes: buf, RowStride: 64, PixelStride: 1}},
	}

	first, err := svc.AnalyzeFrame(context.Background(), frame)
	require.NoError(t, err)
	second, err := svc.AnalyzeFrame(context.Background(), frame)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestDisposeTerminal(t *testing.T) {
	svc := NewWithConfig(fallbackConfig())
	require.NoError(t, svc.Load(context.Background()))
	svc.Analyze(context.Background(), createTestJPEG(t, 3))

	svc.Dispose()

	require.Equal(t, StateDisposed, svc.CurrentState())
	require.Equal(t, 0, svc.CacheStats().Entries)

	_, err := svc.Analyze(context.Background(), createTestJPEG(t, 3))
	require.ErrorIs(t, err, ErrNotReady)

	err = svc.Load(context.Background())
	require.Error(t, err)

	// Second dispose is a no-op.
	svc.Dispose()
}

func TestDoubleLoadRejected(t *testing.T) {
	svc := NewWithConfig(fallbackConfig())
	defer svc.Dispose()
	require.NoError(t, svc.Load(context.Background()))

	require.Error(t, svc.Load(context.Background()))
}

func TestHighlightRequiresModelPath(t *testing.T) {
	svc := NewWithConfig(fallbackConfig())
	defer svc.Dispose()
	require.NoError(t, svc.Load(context.Background()))

	_, err := svc.Highlight(context.Background(), createTestJPEG(t, 7), "png", 90)
	require.ErrorIs(t, err, ErrNotReady)
}

func TestDebugPredictorSelection(t *testing.T) {
	cfg := fallbackConfig()
	cfg.DebugPredictor = true
	svc := NewWithConfig(cfg)
	defer svc.Dispose()

	require.NoError(t, svc.Load(context.Background()))

	res, err := svc.Analyze(context.Background(), createTestJPEG(t, 1))
	require.NoError(t, err)
	require.Equal(t, types.Labels[0], res.Disease)
}

func TestFreshInstancesShareNothing(t *testing.T) {
	a := NewWithConfig(fallbackConfig())
	defer a.Dispose()
	b := NewWithConfig(fallbackConfig())
	defer b.Dispose()

	require.NoError(t, a.Load(context.Background()))
	require.NoError(t, b.Load(context.Background()))

	_, err := a.Analyze(context.Background(), createTestJPEG(t, 9))
	require.NoError(t, err)

	require.Equal(t, 1, a.CacheStats().Entries)
	require.Equal(t, 0, b.CacheStats().Entries)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "unloaded", StateUnloaded.String())
	require.Equal(t, "ready", StateReady.String())
	require.Equal(t, "fallback-ready", StateFallbackReady.String())
	require.Equal(t, "disposed", StateDisposed.String())
}
