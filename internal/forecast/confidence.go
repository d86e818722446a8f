package forecast

import "math"

// WMAPESentinel stands in for the weighted error when an entity's actuals
// sum to zero; the metric is undefined there and must never divide by zero.
const WMAPESentinel = 999.0

// WMAPE computes the weighted mean absolute percentage error
// 100 * Σ|actual-predicted| / Σactual over paired slices.
func WMAPE(actual, predicted []float64) float64 {
	var absErr, total float64
	n := len(actual)
	if len(predicted) < n {
		n = len(predicted)
	}
	for i := 0; i < n; i++ {
		absErr += math.Abs(actual[i] - predicted[i])
		total += actual[i]
	}
	if total <= 0 {
		return WMAPESentinel
	}
	return 100 * absErr / total
}

// Classify assigns the confidence tier from an entity's error and its
// training-history length. Both conditions must hold for a tier; anything
// else is Low.
func (t Thresholds) Classify(wmape float64, trainWeeks int) Tier {
	switch {
	case wmape < t.T1 && trainWeeks >= t.W1:
		return TierHigh
	case wmape < t.T2 && trainWeeks >= t.W2:
		return TierMedium
	default:
		return TierLow
	}
}
