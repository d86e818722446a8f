package forecast

import (
	"fmt"
	"math"
)

// Regressor is any supervised model fitting numeric features to a numeric
// target. The engine is agnostic to the algorithm family; implementations
// must be safe for concurrent Predict calls once Fit has returned.
type Regressor interface {
	Fit(features [][]float64, target []float64) error
	Predict(features []float64) float64
}

// Ridge is an L2-regularized linear regressor solved on the normal
// equations. It is deliberately small: demand series here are short weekly
// aggregates, and regularization keeps near-collinear lag columns from
// blowing up the solve.
type Ridge struct {
	lambda  float64
	weights []float64 // weights[0] is the intercept
}

// NewRidge creates a ridge regressor. lambda zero degrades to ordinary least
// squares.
func NewRidge(lambda float64) *Ridge {
	return &Ridge{lambda: lambda}
}

// Fit solves (XᵀX + λI)w = Xᵀy with an intercept column. The intercept is
// not penalized. Fit fails on empty, ragged or degenerate inputs; callers
// treat failure as a routing decision, not an abort.
func (m *Ridge) Fit(features [][]float64, target []float64) error {
	n := len(features)
	if n == 0 || n != len(target) {
		return fmt.Errorf("ridge fit: %d feature rows vs %d targets", n, len(target))
	}
	p := len(features[0])
	for i, row := range features {
		if len(row) != p {
			return fmt.Errorf("ridge fit: ragged feature matrix at row %d", i)
		}
	}
	for _, row := range features {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("ridge fit: non-finite feature value")
			}
		}
	}

	// Augment with the intercept column.
	dim := p + 1
	xtx := make([][]float64, dim)
	for i := range xtx {
		xtx[i] = make([]float64, dim)
	}
	xty := make([]float64, dim)

	for r := 0; r < n; r++ {
		row := make([]float64, dim)
		row[0] = 1
		copy(row[1:], features[r])
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				xtx[i][j] += row[i] * row[j]
			}
			xty[i] += row[i] * target[r]
		}
	}
	for i := 1; i < dim; i++ {
		xtx[i][i] += m.lambda
	}

	weights, err := solve(xtx, xty)
	if err != nil {
		return fmt.Errorf("ridge fit: %w", err)
	}
	m.weights = weights
	return nil
}

// Predict evaluates the fitted line. A zero-value Ridge predicts zero.
func (m *Ridge) Predict(features []float64) float64 {
	if len(m.weights) == 0 {
		return 0
	}
	pred := m.weights[0]
	for i, v := range features {
		if i+1 >= len(m.weights) {
			break
		}
		pred += m.weights[i+1] * v
	}
	return pred
}

// solve runs Gaussian elimination with partial pivoting on a copy of the
// inputs.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	m := make([][]float64, n)
	for i := range a {
		m[i] = make([]float64, n+1)
		copy(m[i], a[i])
		m[i][n] = b[i]
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular system at column %d", col)
		}
		m[col], m[pivot] = m[pivot], m[col]

		for r := col + 1; r < n; r++ {
			factor := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= factor * m[col][c]
			}
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := m[i][n]
		for j := i + 1; j < n; j++ {
			sum -= m[i][j] * x[j]
		}
		x[i] = sum / m[i][i]
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite solution")
		}
	}
	return x, nil
}
