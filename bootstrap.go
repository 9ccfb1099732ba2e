// Project: SPUR1 Moment-Inequality Testing for Product-Portfolio Choices
// Reference: Andrews and Kwon (2023), "Misspecified Moment Inequality Models"

package ineq

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// GenerateBootstrapIndices draws a replications x n matrix of observation
// indices with replacement from [0, n). Seed 0 means a time-based seed.
// Callers that need the same resampling across several calls should generate
// the matrix once and pass it through BootstrapConfig.Indices.
func GenerateBootstrapIndices(n, replications int, seed int64) [][]int {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	indices := make([][]int, replications)
	for b := range indices {
		row := make([]int, n)
		for i := range row {
			row[i] = rng.Intn(n)
		}
		indices[b] = row
	}
	return indices
}

// resolve returns the authoritative index matrix for one test: the explicit
// matrix when supplied, otherwise a fresh draw. A missing replication count
// with no explicit matrix is a configuration error.
func (cfg BootstrapConfig) resolve(n int) ([][]int, error) {
	if len(cfg.Indices) > 0 {
		return cfg.Indices, nil
	}
	if cfg.Replications <= 0 {
		return nil, fmt.Errorf("bootstrap replications must be specified if bootstrap indices are not")
	}
	return GenerateBootstrapIndices(n, cfg.Replications, cfg.Seed), nil
}

// aggregateResamples applies agg to each bootstrap resample of the rows of X,
// yielding one aggregate row per replication (B x k).
func aggregateResamples(X *mat.Dense, indices [][]int, agg Aggregate) *mat.Dense {
	_, k := X.Dims()
	resample := mat.NewDense(len(indices[0]), k, nil)
	out := mat.NewDense(len(indices), k, nil)
	for b, row := range indices {
		for i, src := range row {
			resample.SetRow(i, X.RawRowView(src))
		}
		out.SetRow(b, agg(resample))
	}
	return out
}

// ColumnMeans is the default m_hat aggregate: the sample mean of each moment
// column.
func ColumnMeans(X mat.Matrix) []float64 {
	n, k := X.Dims()
	col := make([]float64, n)
	out := make([]float64, k)
	for j := 0; j < k; j++ {
		mat.Col(col, j, X)
		out[j] = stat.Mean(col, nil)
	}
	return out
}

// popStdCols returns the population standard deviation of each column of M.
// The population form (divisor B, not B-1) matches the reference procedure.
func popStdCols(M *mat.Dense) []float64 {
	rows, k := M.Dims()
	col := make([]float64, rows)
	out := make([]float64, k)
	for j := 0; j < k; j++ {
		mat.Col(col, j, M)
		out[j] = stat.PopStdDev(col, nil)
	}
	return out
}

// quantileMidpoint returns the empirical q-quantile of samples using midpoint
// interpolation: the average of the two order statistics straddling the
// virtual index q*(n-1). This is the MATLAB-compatible convention the
// critical-value step requires, not the more common linear interpolation.
func quantileMidpoint(samples []float64, q float64) float64 {
	n := len(samples)
	if n == 0 {
		return math.NaN()
	}

	tmp := make([]float64, n)
	copy(tmp, samples)
	sort.Float64s(tmp)

	if q <= 0 {
		return tmp[0]
	}
	if q >= 1 {
		return tmp[n-1]
	}

	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return (tmp[lo] + tmp[hi]) / 2
}
