// Project: SPUR1 Moment-Inequality Testing for Product-Portfolio Choices
// Reference: Andrews and Kwon (2023), "Misspecified Moment Inequality Models"

package ineq

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// LoadMatrixCSV loads a CSV file with a header row into a dense matrix.
// Every data row must carry one float per header column. It returns the
// matrix and the column names.
func LoadMatrixCSV(path string) (*mat.Dense, []string, error) {
	// 1. Open file
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	// 2. Make CSV reader
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	// 3. Read header row
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) == 0 {
		return nil, nil, fmt.Errorf("empty header in %s", path)
	}
	k := len(header)

	var (
		data []float64
		rows int
	)

	// 4. Read each data row
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row %d: %w", rows+2, err) // +2 for header + 1-based
		}

		// Skip completely empty lines
		if len(record) == 1 && record[0] == "" {
			continue
		}
		if len(record) != k {
			return nil, nil, fmt.Errorf("row %d has %d fields, want %d", rows+2, len(record), k)
		}

		for col, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("parse row %d column %q: %w", rows+2, header[col], err)
			}
			data = append(data, v)
		}
		rows++
	}

	if rows == 0 {
		return nil, nil, fmt.Errorf("no data rows in %s", path)
	}
	return mat.NewDense(rows, k, data), header, nil
}

// LoadVectorCSV loads the first column of a CSV file with a header row into
// a float slice.
func LoadVectorCSV(path string) ([]float64, error) {
	M, _, err := LoadMatrixCSV(path)
	if err != nil {
		return nil, err
	}

	rows, _ := M.Dims()
	vec := make([]float64, rows)
	mat.Col(vec, 0, M)
	return vec, nil
}

// WriteResultsCSV writes one row per tested theta with the observed
// statistic, the critical value, and the rejection decision.
func WriteResultsCSV(path string, results []TestResult) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"theta", "rhat", "critical_value", "reject"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, res := range results {
		coords := make([]string, len(res.Theta))
		for i, t := range res.Theta {
			coords[i] = strconv.FormatFloat(t, 'f', -1, 64)
		}
		record := []string{
			strings.Join(coords, ";"),
			fmt.Sprintf("%f", res.RHat),
			fmt.Sprintf("%f", res.CriticalValue),
			fmt.Sprintf("%t", res.Reject),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}
