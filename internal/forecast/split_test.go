package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dpcli/internal/feature"
	"dpcli/internal/ledger"
)

func featRow(entity string, year, week int, qty float64) feature.Row {
	return feature.Row{
		EntityID:       entity,
		Week:           ledger.Week{Year: year, Week: week},
		WeekOfYear:     week,
		WeeklyQuantity: qty,
		QuantityLag:    map[int]float64{},
		PriceLag:       map[int]float64{},
	}
}

func TestSplitByCutoff(t *testing.T) {
	rows := []feature.Row{
		featRow("A", 2024, 24, 1),
		featRow("A", 2024, 26, 2),
		featRow("A", 2024, 27, 3),
		featRow("B", 2024, 30, 4),
	}

	train, test := Split(rows, ledger.Week{Year: 2024, Week: 26})

	assert.Len(t, train, 2, "cutoff week itself trains")
	assert.Len(t, test, 2)
	assert.Equal(t, ledger.Week{Year: 2024, Week: 27}, test[0].Week)
}

func TestSufficiencyGate(t *testing.T) {
	var train, test []feature.Row
	for w := 1; w <= 6; w++ {
		train = append(train, featRow("enough", 2024, w, 1))
	}
	for w := 1; w <= 3; w++ {
		train = append(train, featRow("short", 2024, w, 1))
	}
	for w := 1; w <= 9; w++ {
		train = append(train, featRow("no-test", 2024, w, 1))
	}
	test = append(test,
		featRow("enough", 2024, 30, 1),
		featRow("short", 2024, 30, 1),
		featRow("unseen", 2024, 30, 1),
	)

	gates := SufficiencyGate(train, test, 4)

	assert.True(t, gates["enough"].Dedicated)
	assert.False(t, gates["short"].Dedicated, "3 training rows is below the minimum of 4")
	assert.False(t, gates["no-test"].Dedicated, "a model that cannot be evaluated must not be trained")
	assert.False(t, gates["unseen"].Dedicated)
	assert.Equal(t, 0, gates["unseen"].TrainRows)
	assert.Equal(t, 1, gates["unseen"].TestRows)
}

func TestSufficiencyGateDeterministic(t *testing.T) {
	train := []feature.Row{featRow("A", 2024, 1, 1), featRow("A", 2024, 2, 1)}
	test := []feature.Row{featRow("A", 2024, 9, 1)}

	first := SufficiencyGate(train, test, 2)
	second := SufficiencyGate(train, test, 2)
	assert.Equal(t, first, second)
}
