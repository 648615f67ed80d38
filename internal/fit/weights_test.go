package fit

import (
	"errors"
	"testing"

	"github.com/cwbudde/xcfit/internal/xc"
)

func TestDefaultWeights(t *testing.T) {
	w, err := DefaultWeights(xc.Params{"a": 0.3, "b": -2}, 4)
	if err != nil {
		t.Fatalf("DefaultWeights failed: %v", err)
	}
	if len(w) != 2 || w["a"] != 0.25 || w["b"] != 0.25 {
		t.Errorf("Expected 1/4 for every parameter, got %v", w)
	}
}

func TestNormalizeWeights(t *testing.T) {
	in := xc.Params{"a": 2, "b": 8}
	w, err := NormalizeWeights(in, 2)
	if err != nil {
		t.Fatalf("NormalizeWeights failed: %v", err)
	}
	if w["a"] != 1 || w["b"] != 4 {
		t.Errorf("Unexpected weights %v", w)
	}
	if in["a"] != 2 {
		t.Error("NormalizeWeights must not modify its input")
	}

	if _, err := NormalizeWeights(in, 0); !errors.Is(err, ErrConfig) {
		t.Errorf("Expected configuration error for zero reactions, got %v", err)
	}
}
