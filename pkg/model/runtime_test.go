package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leafwise/leaf-analyzer/pkg/types"
)

func TestClassifyBeforeLoad(t *testing.T) {
	r := NewRuntime()

	_, err := r.Classify(types.NewTensor())
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady before load, got %v", err)
	}

	_, err = r.Segment(types.NewTensor())
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady before load, got %v", err)
	}
}

func TestLoadMissingArtifact(t *testing.T) {
	r := NewRuntime()

	err := r.Load(Config{
		ClassifierPath:   "/nonexistent/plant_disease_classifier.onnx",
		SegmentationPath: "/nonexistent/plant_disease_segmentation.onnx",
	})
	if !errors.Is(err, ErrModelMissing) {
		t.Errorf("Expected ErrModelMissing, got %v", err)
	}
	if r.Ready() {
		t.Error("Runtime must not be ready after a failed load")
	}
}

func TestInferenceAfterFailedLoad(t *testing.T) {
	r := NewRuntime()
	_ = r.Load(Config{ClassifierPath: "/nope", SegmentationPath: "/nope"})

	_, err := r.Classify(types.NewTensor())
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady after failed load, got %v", err)
	}
}

func TestCloseUnloadedIsSafe(t *testing.T) {
	r := NewRuntime()
	r.Close()
	r.Close()

	if r.Ready() {
		t.Error("Runtime must stay unready after Close")
	}
}

func TestClassifyLoadErrorMapping(t *testing.T) {
	cases := []struct {
		msg             string
		wantUnsupported bool
	}{
		{"Unsupported model IR version: 11, max supported IR version: 10", true},
		{"opset 21 is under development and support for this is limited", true},
		{"No such file or directory", false},
		{"protobuf parsing failed", false},
	}

	for _, c := range cases {
		got := classifyLoadError(fmt.Errorf("%s", c.msg))
		if errors.Is(got, ErrUnsupportedModel) != c.wantUnsupported {
			t.Errorf("classifyLoadError(%q): unsupported=%v, want %v",
				c.msg, errors.Is(got, ErrUnsupportedModel), c.wantUnsupported)
		}
	}
}
