package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dpcli/internal/ledger"
)

func row(entity string, week ledger.Week, qty, price, revenue float64) ledger.TransactionRow {
	return ledger.TransactionRow{
		EntityID:    entity,
		Week:        week,
		OrderID:     "INV-1",
		Quantity:    qty,
		UnitPrice:   price,
		LineRevenue: revenue,
		CustomerID:  "CUST-1",
		CategoryID:  "CAT-A",
		Region:      "North",
	}
}

func TestCascadeRevenuePreserved(t *testing.T) {
	// quantity=10, unit_price=0, line_revenue=500: the revenue is trusted,
	// the price is back-filled for display only.
	rows := []ledger.TransactionRow{row("SKU-1", ledger.Week{Year: 2024, Week: 1}, 10, 0, 500)}

	out, report := NewCascade(nil, nil).Run(context.Background(), Wrap(rows))

	require.Len(t, out, 1)
	assert.Equal(t, 50.0, out[0].UnitPrice)
	assert.Equal(t, 500.0, out[0].LineRevenue, "positive revenue must never be overwritten")
	assert.Equal(t, SourceTotalOnly, out[0].PriceSource)
	assert.Equal(t, 1, report.Strategies.TotalOnly)
	assert.Equal(t, 0, report.Strategies.TrulyMissing)
}

func TestCascadeEntityAverageInference(t *testing.T) {
	rows := []ledger.TransactionRow{
		row("SKU-1", ledger.Week{Year: 2024, Week: 1}, 2, 10, 20),
		row("SKU-1", ledger.Week{Year: 2024, Week: 2}, 4, 0, 120), // effective price 30
		row("SKU-1", ledger.Week{Year: 2024, Week: 3}, 5, 0, 0),   // truly missing
	}

	out, report := NewCascade(nil, nil).Run(context.Background(), Wrap(rows))

	missing := out[2]
	assert.Equal(t, SourceEntityAvg, missing.PriceSource)
	assert.Equal(t, 20.0, missing.UnitPrice, "mean of effective prices 10 and 30")
	assert.Equal(t, 100.0, missing.LineRevenue)
	assert.Equal(t, 1, report.Strategies.FromEntityAvg)
}

func TestCascadeCatalogFallback(t *testing.T) {
	rows := []ledger.TransactionRow{row("SKU-9", ledger.Week{Year: 2024, Week: 1}, 3, 0, 0)}
	catalog := ledger.Catalog{"SKU-9": 7.5}

	out, report := NewCascade(catalog, nil).Run(context.Background(), Wrap(rows))

	assert.Equal(t, SourceCatalog, out[0].PriceSource)
	assert.Equal(t, 7.5, out[0].UnitPrice)
	assert.Equal(t, 22.5, out[0].LineRevenue)
	assert.Equal(t, 1, report.Strategies.FromCatalog)
}

func TestCascadeUnresolved(t *testing.T) {
	// Lone row, no catalog entry: stays at zero with the full revenue penalty.
	rows := []ledger.TransactionRow{row("SKU-1", ledger.Week{Year: 2024, Week: 1}, 5, 0, 0)}

	out, report := NewCascade(nil, nil).Run(context.Background(), Wrap(rows))

	assert.Equal(t, SourceUnresolved, out[0].PriceSource)
	assert.Equal(t, 0.0, out[0].UnitPrice)
	assert.Equal(t, 0.0, out[0].LineRevenue)
	assert.Equal(t, 70, out[0].QualityScore, "100 - 30 for zero revenue")
	assert.Equal(t, 1, report.Strategies.Unresolved)
}

func TestCascadeDimensionalProvenance(t *testing.T) {
	clean := row("SKU-1", ledger.Week{Year: 2024, Week: 1}, 2, 10, 20)

	degraded := row("SKU-2", ledger.Week{Year: 2024, Week: 1}, 2, 10, 20)
	degraded.Region = "Unknown"
	degraded.CustomerID = ""

	out, _ := NewCascade(nil, nil).Run(context.Background(),
		Wrap([]ledger.TransactionRow{clean, degraded}))

	assert.Equal(t, RegionOriginal, out[0].RegionSource)
	assert.Equal(t, CustomerOriginal, out[0].CustomerSource)
	assert.Equal(t, RegionUnfixable, out[1].RegionSource)
	assert.Equal(t, CustomerMissing, out[1].CustomerSource)
}

func TestCascadeIdempotent(t *testing.T) {
	rows := []ledger.TransactionRow{
		row("SKU-1", ledger.Week{Year: 2024, Week: 1}, 2, 10, 20),
		row("SKU-1", ledger.Week{Year: 2024, Week: 2}, 4, 0, 0),
		row("SKU-2", ledger.Week{Year: 2024, Week: 1}, 5, 0, 0),
		row("SKU-3", ledger.Week{Year: 2024, Week: 1}, 10, 0, 500),
	}
	cascade := NewCascade(ledger.Catalog{"SKU-2": 3}, nil)

	once, _ := cascade.Run(context.Background(), Wrap(rows))
	twice, secondReport := cascade.Run(context.Background(), once)

	assert.Equal(t, once, twice, "second pass must not change any row")
	assert.Zero(t, secondReport.Strategies.FromEntityAvg)
	assert.Zero(t, secondReport.Strategies.FromCatalog)
	assert.Zero(t, secondReport.Strategies.TrulyMissing)
}

func TestCascadeMonotonicity(t *testing.T) {
	rows := []ledger.TransactionRow{
		row("SKU-1", ledger.Week{Year: 2024, Week: 1}, 2, 10, 20),
		row("SKU-1", ledger.Week{Year: 2024, Week: 2}, 4, 0, 0),
		row("SKU-2", ledger.Week{Year: 2024, Week: 1}, 5, 0, 0),
	}

	_, report := NewCascade(nil, nil).Run(context.Background(), Wrap(rows))

	assert.GreaterOrEqual(t, report.After.TotalRevenue, report.Before.TotalRevenue)
	assert.LessOrEqual(t, report.Strategies.Unresolved, report.Strategies.TrulyMissing)
}

func TestCascadeReport(t *testing.T) {
	rows := []ledger.TransactionRow{
		row("SKU-1", ledger.Week{Year: 2024, Week: 1}, 2, 10, 20),
		row("SKU-1", ledger.Week{Year: 2024, Week: 2}, 4, 0, 0),
	}

	_, report := NewCascade(nil, nil).Run(context.Background(), Wrap(rows))

	assert.Equal(t, 2, report.Before.Rows)
	assert.Equal(t, 20.0, report.Before.TotalRevenue)
	assert.Equal(t, 1, report.Before.ZeroRevenueRows)
	assert.Equal(t, 60.0, report.After.TotalRevenue, "missing row inferred at 10/unit * 4")
	assert.Equal(t, 40.0, report.After.RevenueDelta)
	assert.InDelta(t, 200.0, report.After.RevenueDeltaPct, 1e-9)
	assert.Equal(t, 100.0, report.EnrichmentRate())
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestQualityScoring(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*ledger.TransactionRow)
		catalog   ledger.Catalog
		wantScore int
		wantTier  QualityTier
	}{
		{
			name:      "clean row",
			mutate:    func(r *ledger.TransactionRow) {},
			wantScore: 100,
			wantTier:  TierExcellent,
		},
		{
			name: "inferred price",
			mutate: func(r *ledger.TransactionRow) {
				r.UnitPrice = 0
				r.LineRevenue = 0
			},
			catalog:   ledger.Catalog{"SKU-1": 5},
			wantScore: 90,
			wantTier:  TierExcellent,
		},
		{
			name: "unresolved with unknown region and no customer",
			mutate: func(r *ledger.TransactionRow) {
				r.UnitPrice = 0
				r.LineRevenue = 0
				r.Region = "Unknown"
				r.CustomerID = ""
			},
			wantScore: 40, // 100 - 30 - 20 - 10
			wantTier:  TierPoor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := row("SKU-1", ledger.Week{Year: 2024, Week: 1}, 5, 4, 20)
			tt.mutate(&r)

			out, _ := NewCascade(tt.catalog, nil).Run(context.Background(), Wrap([]ledger.TransactionRow{r}))

			assert.Equal(t, tt.wantScore, out[0].QualityScore)
			assert.Equal(t, tt.wantTier, out[0].QualityTier)
		})
	}
}

func TestTierBoundaries(t *testing.T) {
	assert.Equal(t, TierPoor, tierFor(49))
	assert.Equal(t, TierFair, tierFor(50))
	assert.Equal(t, TierFair, tierFor(69))
	assert.Equal(t, TierGood, tierFor(70))
	assert.Equal(t, TierGood, tierFor(89))
	assert.Equal(t, TierExcellent, tierFor(90))
}
