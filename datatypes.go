// Project: SPUR1 Moment-Inequality Testing for Product-Portfolio Choices
// Reference: Andrews and Kwon (2023), "Misspecified Moment Inequality Models"

// Package ineq implements the SPUR1 inference engine: the observed test
// statistic, the GMS tuning and penalty construction, bootstrap resampling of
// the moment statistics, the scaling-factor estimation, and the final
// critical-value computation. Construction of the raw moment matrix and its
// columnwise reduction is the caller's job; this package only consumes their
// numeric output.
package ineq

import (
	"gonum.org/v1/gonum/mat"
)

// iotaFloor is the small floor applied to every estimated standard deviation
// (iota in eq. (4.16)) so degenerate bootstrap variances never divide to Inf.
const iotaFloor = 1e-6

// MomentSource supplies the n x k moment matrix for a candidate theta.
// Moments returns the raw m_function output; the test procedure applies its
// own sign flip so that violations come out positive. Observations reports n,
// the number of rows Moments produces, which fixes the sample-size-dependent
// tuning parameters before any evaluation happens.
type MomentSource interface {
	Moments(theta []float64) (*mat.Dense, error)
	Observations() int
}

// Aggregate reduces an n x k moment matrix to one statistic per column
// (m_hat). The same function is applied to the observed matrix and to every
// bootstrap resample of its rows.
type Aggregate func(X mat.Matrix) []float64

// GridDirection selects which coordinate of theta a grid search moves.
type GridDirection int

// Grid directions for the candidate-parameter search.
const (
	GridAll GridDirection = iota // search both coordinates (m_function only)
	Grid1                        // first theta coordinate
	Grid2                        // second theta coordinate
)

func (d GridDirection) String() string {
	switch d {
	case GridAll:
		return "all"
	case Grid1:
		return "1"
	case Grid2:
		return "2"
	}
	return "invalid"
}

// BootstrapConfig fixes how the bootstrap index matrix is obtained. If
// Indices is non-empty it is authoritative: Replications and Seed are
// ignored, and every step of one test reuses the same matrix. Otherwise
// Replications rows of n indices are drawn with replacement; Seed 0 means a
// time-based seed.
type BootstrapConfig struct {
	// Number of bootstrap replications (e.g. 500-2000). Required if
	// Indices is empty.
	Replications int

	// RNG seed for index generation (0 = time-based).
	Seed int64

	// Precomputed index matrix, Replications x n, entries in [0, n).
	Indices [][]int
}

// FixedMomentSource wraps one precomputed moment matrix as a MomentSource.
// It serves callers that evaluate the test at a single theta for which the
// moment matrix was built externally; the theta argument is ignored.
type FixedMomentSource struct {
	X *mat.Dense
}

func (s *FixedMomentSource) Moments(theta []float64) (*mat.Dense, error) {
	return s.X, nil
}

func (s *FixedMomentSource) Observations() int {
	n, _ := s.X.Dims()
	return n
}

// TestResult holds the outcome of one SPUR1 test evaluation.
type TestResult struct {
	Theta         []float64 // candidate parameter that was tested
	RHat          float64   // observed test statistic
	CriticalValue float64   // bootstrap critical value at the chosen alpha
	Reject        bool      // RHat > CriticalValue
}
