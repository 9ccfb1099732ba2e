// Project: SPUR1 Moment-Inequality Testing for Product-Portfolio Choices
// Reference: Andrews and Kwon (2023), "Misspecified Moment Inequality Models"

package main

import (
	"fmt"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"SPUR1_Portfolio_Inequality_Project/ineq"
)

// This driver runs the SPUR1 test for one candidate theta whose moment
// matrix was already built by the moment-construction stage. It expects a
// moments CSV (n rows, one column per moment/instrument combination, header
// row), a significance level, and a bootstrap replication count. An optional
// seed fixes the resampling, and an optional An-vector CSV supplies the
// penalty from the grid-search stage; without it the zero penalty is used.

func main() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: spurtest <moments_csv> <alpha> <replications> [seed] [an_vec_csv]")
		return
	}

	momentsPath := os.Args[1]

	alpha, err := strconv.ParseFloat(os.Args[2], 64)
	if err != nil {
		panic(fmt.Sprintf("invalid alpha %q: %v", os.Args[2], err))
	}

	replications, err := strconv.Atoi(os.Args[3])
	if err != nil || replications <= 0 {
		panic(fmt.Sprintf("invalid replication count %q", os.Args[3]))
	}

	var seed int64
	if len(os.Args) > 4 {
		seed, err = strconv.ParseInt(os.Args[4], 10, 64)
		if err != nil {
			panic(fmt.Sprintf("invalid seed %q: %v", os.Args[4], err))
		}
	}

	// 1. Load the moment matrix
	X, names, err := ineq.LoadMatrixCSV(momentsPath)
	if err != nil {
		panic(err)
	}
	n, k := X.Dims()
	fmt.Println("Loaded moment matrix with", n, "observations and", k, "moments:", names)

	// 2. Pre-generate the bootstrap index matrix so every step of the test
	// shares the same resampling
	indices := ineq.GenerateBootstrapIndices(n, replications, seed)
	cfg := ineq.BootstrapConfig{Indices: indices}

	// 3. Observed test statistic
	src := &ineq.FixedMomentSource{X: X}
	rHat, err := ineq.RHat(src, ineq.ColumnMeans, nil, nil)
	if err != nil {
		panic(err)
	}
	fmt.Println("Observed statistic rhat =", rHat)

	// 4. Penalty vector: from the grid-search stage if supplied, zero
	// otherwise
	anVec := make([]float64, replications)
	if len(os.Args) > 5 {
		anVec, err = ineq.LoadVectorCSV(os.Args[5])
		if err != nil {
			panic(err)
		}
		fmt.Println("Loaded An vector with", len(anVec), "entries")
	}

	// 5. Bootstrap critical value (the test operates on negated moments)
	var negX mat.Dense
	negX.Scale(-1, X)
	cValue, err := ineq.CvalueSPUR1(&negX, ineq.ColumnMeans, alpha, anVec, cfg)
	if err != nil {
		panic(err)
	}
	fmt.Println("Critical value at alpha =", alpha, "is", cValue)

	// 6. Decision
	result := ineq.TestResult{
		RHat:          rHat,
		CriticalValue: cValue,
		Reject:        rHat > cValue,
	}
	if result.Reject {
		fmt.Println("Reject: the candidate theta violates the moment inequalities")
	} else {
		fmt.Println("Fail to reject: the candidate theta is consistent with the moment inequalities")
	}

	// 7. Write results
	if err := ineq.WriteResultsCSV("spur1_results.csv", []ineq.TestResult{result}); err != nil {
		panic(err)
	}
	fmt.Println("Wrote spur1_results.csv")
}
