// Project: SPUR1 Moment-Inequality Testing for Product-Portfolio Choices
// Reference: Andrews and Kwon (2023), "Misspecified Moment Inequality Models"

package ineq

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMatrixCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moments.csv")
	content := "m1,m2,m3\n" +
		"1.5,-2.0,0.25\n" +
		"0.0,3.5,-1.0\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	X, names, err := LoadMatrixCSV(path)
	if err != nil {
		t.Fatalf("LoadMatrixCSV returned error: %v", err)
	}

	rows, cols := X.Dims()
	if rows != 2 || cols != 3 {
		t.Fatalf("loaded %dx%d matrix, want 2x3", rows, cols)
	}
	if len(names) != 3 || names[0] != "m1" || names[2] != "m3" {
		t.Errorf("column names = %v, want [m1 m2 m3]", names)
	}

	want := [][]float64{
		{1.5, -2.0, 0.25},
		{0.0, 3.5, -1.0},
	}
	for i := range want {
		for j := range want[i] {
			if !almostEqual(X.At(i, j), want[i][j], 1e-12) {
				t.Errorf("X[%d][%d] = %v, want %v", i, j, X.At(i, j), want[i][j])
			}
		}
	}
}

func TestLoadMatrixCSVErrors(t *testing.T) {
	dir := t.TempDir()

	if _, _, err := LoadMatrixCSV(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}

	// Header only, no data rows.
	headerOnly := filepath.Join(dir, "header_only.csv")
	if err := os.WriteFile(headerOnly, []byte("m1,m2\n"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, _, err := LoadMatrixCSV(headerOnly); err == nil {
		t.Error("expected error for file with no data rows")
	}

	// Non-numeric field.
	badField := filepath.Join(dir, "bad_field.csv")
	if err := os.WriteFile(badField, []byte("m1,m2\n1.0,oops\n"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, _, err := LoadMatrixCSV(badField); err == nil {
		t.Error("expected error for non-numeric field")
	}
}

func TestLoadVectorCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "an_vec.csv")
	content := "an\n0.1\n-0.2\n0.3\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	vec, err := LoadVectorCSV(path)
	if err != nil {
		t.Fatalf("LoadVectorCSV returned error: %v", err)
	}

	want := []float64{0.1, -0.2, 0.3}
	if len(vec) != len(want) {
		t.Fatalf("loaded %d entries, want %d", len(vec), len(want))
	}
	for i := range want {
		if !almostEqual(vec[i], want[i], 1e-12) {
			t.Errorf("vec[%d] = %v, want %v", i, vec[i], want[i])
		}
	}
}

func TestWriteResultsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	results := []TestResult{
		{Theta: []float64{0.5, -1.0}, RHat: 0.12, CriticalValue: 0.34, Reject: false},
		{Theta: []float64{1.5, 2.0}, RHat: 0.9, CriticalValue: 0.34, Reject: true},
	}

	if err := WriteResultsCSV(path, results); err != nil {
		t.Fatalf("WriteResultsCSV returned error: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("results file was not created")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading results file: %v", err)
	}
	content := string(data)
	if len(content) == 0 {
		t.Fatal("results file is empty")
	}
	wantHeader := "theta,rhat,critical_value,reject\n"
	if content[:len(wantHeader)] != wantHeader {
		t.Errorf("header = %q, want %q", content[:len(wantHeader)], wantHeader)
	}
}
