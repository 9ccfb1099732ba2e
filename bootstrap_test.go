// Project: SPUR1 Moment-Inequality Testing for Product-Portfolio Choices
// Reference: Andrews and Kwon (2023), "Misspecified Moment Inequality Models"

package ineq

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// almostEqual compares floats with tolerance
func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestGenerateBootstrapIndicesShape(t *testing.T) {
	indices := GenerateBootstrapIndices(12, 7, 42)

	if len(indices) != 7 {
		t.Fatalf("got %d replications, want 7", len(indices))
	}
	for b, row := range indices {
		if len(row) != 12 {
			t.Errorf("replication %d has %d indices, want 12", b, len(row))
		}
		for i, idx := range row {
			if idx < 0 || idx >= 12 {
				t.Errorf("replication %d index %d out of range: %d", b, i, idx)
			}
		}
	}
}

func TestGenerateBootstrapIndicesReproducible(t *testing.T) {
	first := GenerateBootstrapIndices(10, 5, 42)
	second := GenerateBootstrapIndices(10, 5, 42)

	for b := range first {
		for i := range first[b] {
			if first[b][i] != second[b][i] {
				t.Fatalf("same seed diverged at [%d][%d]: %d vs %d", b, i, first[b][i], second[b][i])
			}
		}
	}

	other := GenerateBootstrapIndices(10, 5, 43)
	same := true
	for b := range first {
		for i := range first[b] {
			if first[b][i] != other[b][i] {
				same = false
			}
		}
	}
	if same {
		t.Error("different seeds produced identical index matrices")
	}
}

func TestBootstrapConfigResolve(t *testing.T) {
	// Explicit indices are authoritative.
	explicit := [][]int{{0, 1, 2}, {2, 2, 0}}
	cfg := BootstrapConfig{Replications: 99, Seed: 1, Indices: explicit}
	got, err := cfg.resolve(3)
	if err != nil {
		t.Fatalf("resolve with explicit indices returned error: %v", err)
	}
	if len(got) != 2 || &got[0][0] != &explicit[0][0] {
		t.Error("explicit indices were not returned as-is")
	}

	// Missing both is a configuration error.
	if _, err := (BootstrapConfig{}).resolve(3); err == nil {
		t.Error("expected error when neither replications nor indices are given")
	}

	// Replications alone generates the right shape.
	got, err = (BootstrapConfig{Replications: 4, Seed: 9}).resolve(6)
	if err != nil {
		t.Fatalf("resolve with replications returned error: %v", err)
	}
	if len(got) != 4 || len(got[0]) != 6 {
		t.Errorf("generated %dx%d indices, want 4x6", len(got), len(got[0]))
	}
}

func TestColumnMeans(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		1, -2,
		3, -4,
		5, -6,
	})

	got := ColumnMeans(X)
	want := []float64{3, -4}
	for j := range want {
		if !almostEqual(got[j], want[j], 1e-12) {
			t.Errorf("column %d mean = %v, want %v", j, got[j], want[j])
		}
	}
}

type quantileMidpointTest struct {
	Samples []float64
	Q       float64
	Result  float64
}

func TestQuantileMidpoint(t *testing.T) {
	tests := []quantileMidpointTest{
		{[]float64{1, 2, 3, 4}, 0.5, 2.5},
		{[]float64{1, 2, 3, 4}, 0.75, 3.5},
		{[]float64{1, 2, 3, 4}, 0, 1},
		{[]float64{1, 2, 3, 4}, 1, 4},
		{[]float64{1, 2, 3, 4, 5}, 0.5, 3},
		{[]float64{3, 1, 4, 2}, 0.5, 2.5}, // unsorted input
		{[]float64{5}, 0.3, 5},
	}

	for i, test := range tests {
		got := quantileMidpoint(test.Samples, test.Q)
		if !almostEqual(got, test.Result, 1e-12) {
			t.Errorf("Test %d: quantileMidpoint(%v, %v) = %v, want %v",
				i+1, test.Samples, test.Q, got, test.Result)
		}
	}
}

func TestQuantileMidpointMonotone(t *testing.T) {
	samples := []float64{0.3, -1.2, 4.5, 0.0, 2.2, 1.1, -0.4, 3.3}

	prev := math.Inf(-1)
	for q := 0.0; q <= 1.0; q += 0.05 {
		got := quantileMidpoint(samples, q)
		if got < prev-1e-12 {
			t.Fatalf("quantile decreased at q=%v: %v < %v", q, got, prev)
		}
		prev = got
	}
}
