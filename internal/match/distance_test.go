package match

import (
	"math"
	"testing"
)

func TestCosine_IdenticalVectors(t *testing.T) {
	v := []float32{0.1, 0.5, -0.3, 0.8}
	if d := Cosine(v, v); math.Abs(d) > 1e-9 {
		t.Errorf("Cosine(v, v) = %v, want 0", d)
	}
}

func TestCosine_OrthogonalVectors(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}
	if d := Cosine(a, b); math.Abs(d-1.0) > 1e-9 {
		t.Errorf("Cosine(a, b) = %v, want 1", d)
	}
}

func TestCosine_OppositeVectors(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	if d := Cosine(a, b); math.Abs(d-2.0) > 1e-9 {
		t.Errorf("Cosine(a, -a) = %v, want 2", d)
	}
}

func TestCosine_Symmetry(t *testing.T) {
	a := []float32{0.3, -0.2, 0.9}
	b := []float32{0.1, 0.7, 0.4}
	if Cosine(a, b) != Cosine(b, a) {
		t.Error("Cosine is not symmetric")
	}
}

func TestCosine_ZeroNormSentinel(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{0.5, 0.5, 0.5}
	if d := Cosine(a, b); d != 1.0 {
		t.Errorf("zero-norm vector: got %v, want sentinel 1.0 exactly", d)
	}
	if d := Cosine(b, a); d != 1.0 {
		t.Errorf("zero-norm vector (swapped): got %v, want sentinel 1.0 exactly", d)
	}
	if d := Cosine(a, a); d != 1.0 {
		t.Errorf("both zero: got %v, want sentinel 1.0 exactly", d)
	}
}

func TestCosine_LengthMismatch(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{1, 0, 0}
	if d := Cosine(a, b); d != 1.0 {
		t.Errorf("length mismatch: got %v, want sentinel 1.0", d)
	}
}

func TestCosine_Range(t *testing.T) {
	vecs := [][]float32{
		{0.9, 0.1, -0.4},
		{-0.2, 0.6, 0.7},
		{0.5, -0.5, 0.5},
		{0.01, 0.99, 0},
	}
	for i, a := range vecs {
		for j, b := range vecs {
			d := Cosine(a, b)
			if d < 0-1e-9 || d > 2+1e-9 {
				t.Errorf("Cosine(vecs[%d], vecs[%d]) = %v, out of [0, 2]", i, j, d)
			}
		}
	}
}

func TestIsZero(t *testing.T) {
	tests := []struct {
		name string
		v    []float32
		want bool
	}{
		{"nil", nil, true},
		{"empty", []float32{}, true},
		{"all zeros", make([]float32, 512), true},
		{"one nonzero", []float32{0, 0, 0.0001}, false},
		{"negative", []float32{0, -0.1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsZero(tt.v); got != tt.want {
				t.Errorf("IsZero() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 100},
		{1, 0},
		{0.5, 50},
		{0.123456, 87.65},
		{0.4, 60},
	}
	for _, tt := range tests {
		if got := Confidence(tt.distance); got != tt.want {
			t.Errorf("Confidence(%v) = %v, want %v", tt.distance, got, tt.want)
		}
	}
}
