// Project: SPUR1 Moment-Inequality Testing for Product-Portfolio Choices
// Reference: Andrews and Kwon (2023), "Misspecified Moment Inequality Models"

package ineq

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// RHat computes the observed test statistic for a candidate theta: the worst
// one-sided violation across all moments after the optional additive
// adjustment. adjust may be nil (all-zero), length 1 (broadcast), or one
// entry per moment.
func RHat(src MomentSource, agg Aggregate, theta, adjust []float64) (float64, error) {
	M, err := src.Moments(theta)
	if err != nil {
		return 0, err
	}

	// The whole procedure runs on negated moments so violations are positive.
	var X mat.Dense
	X.Scale(-1, M)

	mHat0 := agg(&X)
	adj, err := expandAdjust(adjust, len(mHat0))
	if err != nil {
		return 0, err
	}

	rHat := math.Inf(-1)
	for j, m := range mHat0 {
		if v := -math.Min(0, m+adj[j]); v > rHat {
			rHat = v
		}
	}
	return rHat, nil
}

// expandAdjust resolves the optional adjustment vector to length k.
func expandAdjust(adjust []float64, k int) ([]float64, error) {
	switch len(adjust) {
	case 0:
		return make([]float64, k), nil
	case 1:
		adj := make([]float64, k)
		for j := range adj {
			adj[j] = adjust[0]
		}
		return adj, nil
	case k:
		return adjust, nil
	}
	return nil, fmt.Errorf("adjust has length %d, want 1 or %d", len(adjust), k)
}

// StdBVec computes the three scaling factors (std_1, std_2, std_3) as in
// (4.19), (4.21) and (4.22): the population standard deviations, over the
// bootstrap replications, of three transformations of the bootstrap
// aggregates. Every entry is floored at iota so a degenerate bootstrap
// variance never surfaces as an error. The result is a 3 x k matrix.
func StdBVec(X *mat.Dense, agg Aggregate, cfg BootstrapConfig) (*mat.Dense, error) {
	n, k := X.Dims()

	indices, err := cfg.resolve(n)
	if err != nil {
		return nil, err
	}

	mHatStar := aggregateResamples(X, indices, agg)
	B := len(indices)
	rootN := math.Sqrt(float64(n))

	// Per-replication minimum of the clipped aggregates.
	mnStar := make([]float64, B)
	for b := 0; b < B; b++ {
		mn := 0.0
		for _, v := range mHatStar.RawRowView(b) {
			if c := math.Min(0, v); c < mn {
				mn = c
			}
		}
		mnStar[b] = mn
	}

	vec1 := mat.NewDense(B, k, nil) // overall slack
	vec2 := mat.NewDense(B, k, nil) // raw level
	vec3 := mat.NewDense(B, k, nil) // shortfall from the minimum
	for b := 0; b < B; b++ {
		for j := 0; j < k; j++ {
			m := mHatStar.At(b, j)
			vec1.Set(b, j, rootN*(m-mnStar[b]))
			vec2.Set(b, j, rootN*m)
			vec3.Set(b, j, rootN*(mnStar[b]-math.Min(0, m)))
		}
	}

	stdB := mat.NewDense(3, k, nil)
	for row, vec := range []*mat.Dense{vec1, vec2, vec3} {
		s := popStdCols(vec)
		for j := range s {
			if s[j] < iotaFloor {
				s[j] = iotaFloor
			}
		}
		stdB.SetRow(row, s)
	}
	return stdB, nil
}

// TnStar computes the B x k matrix of bootstrapped, GMS-adjusted statistics
// as in (4.17)-(4.18): the centered bootstrap aggregate scaled by sqrt(n),
// inflated to +Inf wherever the standardized slack xi_n judges a moment
// non-binding. Inflated moments cannot contribute to the later max-based
// statistic. stdB1 is the first row of StdBVec.
func TnStar(X *mat.Dense, agg Aggregate, stdB1 []float64, kappaN float64, cfg BootstrapConfig) (*mat.Dense, error) {
	n, k := X.Dims()
	if len(stdB1) != k {
		return nil, fmt.Errorf("stdB1 has length %d, want one entry per moment (%d)", len(stdB1), k)
	}

	indices, err := cfg.resolve(n)
	if err != nil {
		return nil, err
	}
	rootN := math.Sqrt(float64(n))

	mHat0 := agg(X)
	rHat := 0.0
	for _, m := range mHat0 {
		if v := -math.Min(0, m); v > rHat {
			rHat = v
		}
	}

	phiN := make([]float64, k)
	for j := 0; j < k; j++ {
		if xi := rootN * (mHat0[j] + rHat) / (stdB1[j] * kappaN); xi > 1 {
			phiN[j] = math.Inf(1)
		}
	}

	mHatStar := aggregateResamples(X, indices, agg)
	tn := mat.NewDense(len(indices), k, nil)
	for b := 0; b < len(indices); b++ {
		for j := 0; j < k; j++ {
			tn.Set(b, j, rootN*(mHatStar.At(b, j)-mHat0[j])+phiN[j])
		}
	}
	return tn, nil
}

// AnStar computes the per-replication penalty for one grid point as in
// (4.25): a min-max game over which near-binding moment is treated as the
// true binding constraint. For every index in the near-binding set hat_j_r,
// the GMS-penalized value is substituted at that index only (a pure
// copy-and-modify, never mutating the shared objective), the row-wise max
// over moments is taken, and the minimum across the alternatives is
// returned. stdB2 and stdB3 are the second and third rows of StdBVec.
func AnStar(X *mat.Dense, agg Aggregate, stdB2, stdB3 []float64, kappaN, hatRInf float64, cfg BootstrapConfig) ([]float64, error) {
	n, k := X.Dims()
	if len(stdB2) != k || len(stdB3) != k {
		return nil, fmt.Errorf("scaling vectors have lengths %d and %d, want %d", len(stdB2), len(stdB3), k)
	}

	indices, err := cfg.resolve(n)
	if err != nil {
		return nil, err
	}
	rootN := math.Sqrt(float64(n))

	// Step 1: the near-binding index set hat_j_r as in (4.24).
	mHat0 := agg(X)
	rHatVec := make([]float64, k)
	for j, m := range mHat0 {
		rHatVec[j] = -math.Min(0, m)
	}
	rHat0 := floats.Max(rHatVec)

	var hatJR []int
	for j := 0; j < k; j++ {
		if rHatVec[j] >= rHat0-stdB3[j]*kappaN/rootN {
			hatJR = append(hatJR, j)
		}
	}

	// Step 2: the objective and its per-moment GMS indicator.
	hatB := make([]float64, k)
	phiN := make([]float64, k)
	for j := 0; j < k; j++ {
		hatB[j] = rootN*(rHatVec[j]-hatRInf) - stdB3[j]*kappaN
		if xiA := rootN * (rHatVec[j] - hatRInf) / (stdB3[j] * kappaN); xiA > 1 {
			phiN[j] = math.Inf(1)
		}
	}

	mHatStar := aggregateResamples(X, indices, agg)
	out := make([]float64, len(indices))
	hi := make([]float64, k)
	for b := range indices {
		// Sign-dependent adjustment from perturbing each moment up or down
		// by std_2 * kappa_n.
		for j := 0; j < k; j++ {
			vStar := rootN * (mHatStar.At(b, j) - mHat0[j])
			pm := 1.0
			if vStar >= 0 {
				pm = -1.0
			}
			base := rootN*mHat0[j] + pm*stdB2[j]*kappaN
			hi[j] = -math.Min(0, base+vStar) + math.Min(0, base)
		}

		best := math.Inf(1)
		for _, j0 := range hatJR {
			worst := math.Inf(-1)
			for j := 0; j < k; j++ {
				v := hatB[j]
				if j == j0 {
					v = phiN[j]
				}
				if v+hi[j] > worst {
					worst = v + hi[j]
				}
			}
			if worst < best {
				best = worst
			}
		}
		out[b] = best
	}
	return out, nil
}

// anPoint carries one grid point's penalty column back from a worker.
type anPoint struct {
	i   int
	col []float64
	err error
}

// AnVec runs the restricted grid search that produces the B-length penalty
// vector entering the critical-value step. The grid is restricted to points
// whose auxiliary statistic is within tau_n/sqrt(n) of 0 or exactly 1; for
// each retained point a two-dimensional theta is built with the grid value
// in the coordinate selected by dir, the moment matrix is recomputed, and
// AnStar is evaluated with that point's scaling factors. The result is the
// row-wise minimum across retained points. All points share one bootstrap
// index matrix so per-replication alignment is exact; since they are
// otherwise read-only over their inputs, the per-point map runs on a worker
// pool.
func AnVec(aux1 []float64, hatRInf float64, src MomentSource, thetaGrid []float64, dir GridDirection, agg Aggregate, cfg BootstrapConfig) ([]float64, error) {
	if dir != Grid1 && dir != Grid2 {
		return nil, fmt.Errorf("grid direction must be 1 or 2, got %q", dir.String())
	}
	if len(aux1) != len(thetaGrid) {
		return nil, fmt.Errorf("auxiliary statistic has length %d, want one entry per grid point (%d)", len(aux1), len(thetaGrid))
	}

	n := src.Observations()
	tauN := math.Sqrt(math.Log(float64(n)))
	kappaN := tauN

	indices, err := cfg.resolve(n)
	if err != nil {
		return nil, err
	}

	// Restrict to grid points of interest; evaluating the rest would cost a
	// full bootstrap each for no information.
	var selected []float64
	thresh := tauN / math.Sqrt(float64(n))
	for i, a := range aux1 {
		if a <= thresh || a == 1 {
			selected = append(selected, thetaGrid[i])
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no grid points of interest: every auxiliary statistic exceeds tau_n/sqrt(n)")
	}

	B := len(indices)
	anMat := mat.NewDense(B, len(selected), nil)
	shared := BootstrapConfig{Indices: indices}

	numWorkers := runtime.NumCPU()
	if numWorkers > len(selected) {
		numWorkers = len(selected)
	}

	jobs := make(chan int)
	resultsCh := make(chan anPoint, len(selected))

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			theta := make([]float64, 2)
			theta[int(dir)-1] = selected[i]

			M, err := src.Moments(theta)
			if err != nil {
				resultsCh <- anPoint{i: i, err: err}
				continue
			}
			var X mat.Dense
			X.Scale(-1, M)

			b0, err := StdBVec(&X, agg, shared)
			if err != nil {
				resultsCh <- anPoint{i: i, err: err}
				continue
			}

			col, err := AnStar(&X, agg, b0.RawRowView(1), b0.RawRowView(2), kappaN, hatRInf, shared)
			resultsCh <- anPoint{i: i, col: col, err: err}
		}
	}

	for w := 0; w < numWorkers; w++ {
		go worker()
	}
	go func() {
		for i := range selected {
			jobs <- i
		}
		close(jobs)
	}()

	var firstErr error
	for range selected {
		res := <-resultsCh
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		anMat.SetCol(res.i, res.col)
	}
	wg.Wait()
	close(resultsCh)

	if firstErr != nil {
		return nil, firstErr
	}

	// Reduce: the tightest penalty consistent with every retained direction.
	an := make([]float64, B)
	for b := 0; b < B; b++ {
		an[b] = floats.Min(anMat.RawRowView(b))
	}
	return an, nil
}

// CvalueSPUR1 calculates the critical value for the SPUR1 test statistic of
// Section 4: the (1-alpha) empirical quantile, with midpoint interpolation,
// of the per-replication statistic sn_star built from the GMS-adjusted
// bootstrap matrix and the An penalty vector. anVec must carry one entry per
// bootstrap replication.
func CvalueSPUR1(X *mat.Dense, agg Aggregate, alpha float64, anVec []float64, cfg BootstrapConfig) (float64, error) {
	if alpha <= 0 || alpha >= 1 {
		return 0, fmt.Errorf("alpha must be in (0, 1), got %v", alpha)
	}

	n, _ := X.Dims()
	kappaN := math.Sqrt(math.Log(float64(n)))

	indices, err := cfg.resolve(n)
	if err != nil {
		return 0, err
	}
	if len(anVec) != len(indices) {
		return 0, fmt.Errorf("an vector has length %d, want one entry per bootstrap replication (%d)", len(anVec), len(indices))
	}

	// Step 1: the bootstrap statistic, on the one shared index matrix.
	shared := BootstrapConfig{Indices: indices}
	stdB, err := StdBVec(X, agg, shared)
	if err != nil {
		return 0, err
	}
	tn, err := TnStar(X, agg, stdB.RawRowView(0), kappaN, shared)
	if err != nil {
		return 0, err
	}

	B, k := tn.Dims()
	snStar := make([]float64, B)
	for b := 0; b < B; b++ {
		worst := math.Inf(-1)
		for j := 0; j < k; j++ {
			if v := -math.Min(0, tn.At(b, j)+anVec[b]); v > worst {
				worst = v
			}
		}
		snStar[b] = worst
	}

	// Step 2: the critical value.
	return quantileMidpoint(snStar, 1-alpha), nil
}
