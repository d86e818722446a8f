package feature

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dpcli/internal/enrich"
	"dpcli/internal/ledger"
)

func record(entity string, week ledger.Week, qty, price float64) enrich.Record {
	return enrich.Record{
		TransactionRow: ledger.TransactionRow{
			EntityID:    entity,
			Week:        week,
			OrderID:     "INV-" + week.String(),
			Quantity:    qty,
			UnitPrice:   price,
			LineRevenue: qty * price,
			CustomerID:  "CUST-1",
			CategoryID:  "CAT-A",
			Region:      "North",
		},
		PriceSource:  enrich.SourceOriginal,
		QualityScore: 100,
		QualityTier:  enrich.TierExcellent,
	}
}

// weeklySeries builds one record per week with the given quantities.
func weeklySeries(entity string, quantities ...float64) []enrich.Record {
	records := make([]enrich.Record, 0, len(quantities))
	w := ledger.Week{Year: 2024, Week: 1}
	for _, q := range quantities {
		records = append(records, record(entity, w, q, 10))
		w = w.Next()
	}
	return records
}

func mustBuilder(t *testing.T, cfg Config) *Builder {
	t.Helper()
	b, err := NewBuilder(cfg, nil)
	require.NoError(t, err)
	return b
}

func TestBuildAggregation(t *testing.T) {
	week := ledger.Week{Year: 2024, Week: 5}
	records := []enrich.Record{
		record("SKU-1", week, 3, 10),
		record("SKU-1", week, 2, 20),
	}
	records[1].OrderID = "INV-other"
	records[1].CustomerID = "CUST-2"

	rows, err := mustBuilder(t, DefaultConfig()).Build(context.Background(), records, ledger.LevelProduct)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, 5.0, r.WeeklyQuantity)
	assert.Equal(t, 70.0, r.WeeklyRevenue)
	assert.Equal(t, 15.0, r.AvgPrice)
	assert.Equal(t, 2, r.OrderCount)
	assert.Equal(t, 2, r.CustomerCount)
	assert.Equal(t, 100.0, r.AvgQuality)
}

func TestBuildLagsUndefinedAtSeriesStart(t *testing.T) {
	rows, err := mustBuilder(t, DefaultConfig()).Build(context.Background(),
		weeklySeries("SKU-1", 10, 20, 30, 40, 50), ledger.LevelProduct)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	_, ok := rows[0].QuantityLag[1]
	assert.False(t, ok, "first week has no lag-1")
	_, ok = rows[3].QuantityLag[4]
	assert.False(t, ok, "fourth week has no lag-4")

	assert.Equal(t, 10.0, rows[1].QuantityLag[1])
	assert.Equal(t, 20.0, rows[3].QuantityLag[2])
	assert.Equal(t, 10.0, rows[4].QuantityLag[4])
	assert.Equal(t, 40.0, rows[4].QuantityLag[1])
}

func TestBuildRollingExcludesCurrentWeek(t *testing.T) {
	rows, err := mustBuilder(t, DefaultConfig()).Build(context.Background(),
		weeklySeries("SKU-1", 10, 20, 30, 1000), ledger.LevelProduct)
	require.NoError(t, err)

	// Week 4's rolling mean covers weeks 1-3 only; its own 1000 is excluded.
	assert.InDelta(t, 20.0, rows[3].RollingMean, 1e-9)
	assert.InDelta(t, 10.0, rows[3].RollingStd, 1e-9)
	assert.Equal(t, 10.0, rows[3].RollingMin)
	assert.Equal(t, 30.0, rows[3].RollingMax)
	assert.InDelta(t, 10.0, rows[3].Trend, 1e-9, "prior window rises 10/week")

	// First week has no history at all.
	assert.Zero(t, rows[0].RollingMean)
	assert.Zero(t, rows[0].RollingStd)
}

func TestBuildMomentumAndCV(t *testing.T) {
	rows, err := mustBuilder(t, DefaultConfig()).Build(context.Background(),
		weeklySeries("SKU-1", 10, 30, 50), ledger.LevelProduct)
	require.NoError(t, err)

	assert.Equal(t, 20.0, rows[2].Momentum, "lag1(30) - lag2(10)")
	assert.Zero(t, rows[1].Momentum, "lag2 undefined")

	// Constant series: rolling std 0, CV guarded to 0 when mean is 0.
	flat, err := mustBuilder(t, DefaultConfig()).Build(context.Background(),
		weeklySeries("SKU-2", 0, 0, 0), ledger.LevelProduct)
	require.NoError(t, err)
	assert.Zero(t, flat[2].CV)
}

func TestBuildNoLeakage(t *testing.T) {
	base := weeklySeries("SKU-1", 5, 8, 13, 21, 34, 55, 89, 144)
	builder := mustBuilder(t, DefaultConfig())

	before, err := builder.Build(context.Background(), base, ledger.LevelProduct)
	require.NoError(t, err)

	// Randomly perturb future weeks; features of earlier weeks must not move.
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		perturbed := make([]enrich.Record, len(base))
		copy(perturbed, base)
		idx := 4 + rng.Intn(4)
		perturbed[idx].Quantity = rng.Float64() * 1000
		perturbed[idx].LineRevenue = perturbed[idx].Quantity * perturbed[idx].UnitPrice

		after, err := builder.Build(context.Background(), perturbed, ledger.LevelProduct)
		require.NoError(t, err)

		for i := 0; i < idx; i++ {
			assert.Equal(t, before[i].Vector(builder.Config()), after[i].Vector(builder.Config()),
				"week %s must not depend on week %s", before[i].Week, after[idx].Week)
		}
	}
}

func TestBuildZeroFillGaps(t *testing.T) {
	records := []enrich.Record{
		record("SKU-1", ledger.Week{Year: 2024, Week: 1}, 10, 5),
		record("SKU-1", ledger.Week{Year: 2024, Week: 4}, 40, 5),
	}

	cfg := DefaultConfig()
	cfg.ZeroFillGaps = true
	rows, err := mustBuilder(t, cfg).Build(context.Background(), records, ledger.LevelProduct)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, ledger.Week{Year: 2024, Week: 2}, rows[1].Week)
	assert.Zero(t, rows[1].WeeklyQuantity)
	assert.Equal(t, 0.0, rows[3].QuantityLag[1], "lag-1 sees the filled zero week")
	assert.Equal(t, 0.0, rows[3].QuantityLag[2])

	// Without filling, lag-1 steps over the gap positionally.
	cfg.ZeroFillGaps = false
	sparse, err := mustBuilder(t, cfg).Build(context.Background(), records, ledger.LevelProduct)
	require.NoError(t, err)
	require.Len(t, sparse, 2)
	assert.Equal(t, 10.0, sparse[1].QuantityLag[1])
}

func TestBuildSeasonalFlags(t *testing.T) {
	records := []enrich.Record{
		record("SKU-1", ledger.Week{Year: 2024, Week: 47}, 10, 5),
		record("SKU-1", ledger.Week{Year: 2024, Week: 50}, 10, 5),
		record("SKU-1", ledger.Week{Year: 2025, Week: 1}, 10, 5),
		record("SKU-1", ledger.Week{Year: 2025, Week: 20}, 10, 5),
	}

	rows, err := mustBuilder(t, DefaultConfig()).Build(context.Background(), records, ledger.LevelProduct)
	require.NoError(t, err)

	assert.True(t, rows[0].IsPeakWeek)
	assert.True(t, rows[0].IsHolidaySeason)
	assert.False(t, rows[1].IsPeakWeek)
	assert.True(t, rows[1].IsHolidaySeason)
	assert.True(t, rows[2].IsHolidaySeason, "season wraps the year boundary")
	assert.False(t, rows[3].IsHolidaySeason)

	assert.InDelta(t, math.Sin(2*math.Pi*47/52), rows[0].WeekSin, 1e-12)
	assert.InDelta(t, math.Cos(2*math.Pi*47/52), rows[0].WeekCos, 1e-12)
}

func TestVectorScrubsNonFinite(t *testing.T) {
	r := Row{
		QuantityLag: map[int]float64{1: math.NaN()},
		PriceLag:    map[int]float64{},
		CV:          math.Inf(1),
	}
	cfg := Config{Lags: []int{1}, RollingWindow: 4}

	vec := r.Vector(cfg)
	require.Len(t, vec, len(Names(cfg)))
	for i, v := range vec {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "component %d", i)
	}
}

func TestBuildGroupsByLevel(t *testing.T) {
	week := ledger.Week{Year: 2024, Week: 5}
	a := record("SKU-1", week, 3, 10)
	b := record("SKU-2", week, 2, 10)
	b.CategoryID = "CAT-A"

	rows, err := mustBuilder(t, DefaultConfig()).Build(context.Background(),
		[]enrich.Record{a, b}, ledger.LevelCategory)
	require.NoError(t, err)
	require.Len(t, rows, 1, "both SKUs share one category")
	assert.Equal(t, "CAT-A", rows[0].EntityID)
	assert.Equal(t, 5.0, rows[0].WeeklyQuantity)
}
