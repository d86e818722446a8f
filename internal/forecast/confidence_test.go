package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWMAPE(t *testing.T) {
	assert.InDelta(t, 25.0, WMAPE([]float64{10, 10}, []float64{7.5, 7.5}), 1e-9)
	assert.InDelta(t, 0.0, WMAPE([]float64{5, 5}, []float64{5, 5}), 1e-9)
	assert.Equal(t, WMAPESentinel, WMAPE([]float64{0, 0}, []float64{3, 4}),
		"zero actual total yields the sentinel, never a division by zero")
	assert.Equal(t, WMAPESentinel, WMAPE(nil, nil))
}

func TestClassify(t *testing.T) {
	defaults := Thresholds{T1: 40, T2: 60, W1: 15, W2: 10}

	tests := []struct {
		name       string
		wmape      float64
		trainWeeks int
		want       Tier
	}{
		{"scenario A: 20 weeks at 25% error", 25, 20, TierHigh},
		{"low error but short history", 25, 12, TierMedium},
		{"low error, tiny history", 25, 3, TierLow},
		{"medium error, long history", 55, 20, TierMedium},
		{"boundary: wmape equals T1", 40, 20, TierMedium},
		{"boundary: exactly W1 weeks", 39.9, 15, TierHigh},
		{"high error", 80, 30, TierLow},
		{"sentinel error", WMAPESentinel, 30, TierLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, defaults.Classify(tt.wmape, tt.trainWeeks))
		})
	}
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, Thresholds{T1: 40, T2: 60, W1: 15, W2: 10}.Validate())
	assert.Error(t, Thresholds{T1: 60, T2: 40, W1: 15, W2: 10}.Validate(), "T1 must be below T2")
	assert.Error(t, Thresholds{T1: 40, T2: 60, W1: 10, W2: 15}.Validate(), "W1 must exceed W2")
	assert.Error(t, Thresholds{T1: 0, T2: 60, W1: 15, W2: 10}.Validate())
}
