package enrich

import (
	"context"
	"log/slog"
	"time"

	"dpcli/internal/ledger"
)

// Cascade runs the multi-strategy missing-value resolution over a ledger.
// Strategies apply in a fixed order; later strategies only see rows the
// earlier ones could not resolve.
type Cascade struct {
	catalog ledger.Catalog
	logger  *slog.Logger
}

// NewCascade creates a cascade. The catalog may be nil, in which case the
// catalog strategy resolves nothing and rows degrade to unresolved.
func NewCascade(catalog ledger.Catalog, logger *slog.Logger) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cascade{catalog: catalog, logger: logger}
}

// Run executes the cascade over the given records and returns the enriched
// copy plus the audit report. Records whose price source is already terminal
// pass through untouched, which makes Run idempotent.
func (c *Cascade) Run(ctx context.Context, records []Record) ([]Record, *Report) {
	out := make([]Record, len(records))
	copy(out, records)

	report := newReport(out)

	avgPrices := entityAveragePrices(out)

	for i := range out {
		r := &out[i]
		if r.PriceSource.Terminal() {
			continue
		}
		r.PriceSource = SourceOriginal
		r.OriginalUnitPrice = r.UnitPrice
		r.OriginalLineRevenue = r.LineRevenue

		hasPrice := r.UnitPrice > 0
		hasRevenue := r.LineRevenue > 0

		switch {
		case hasRevenue && !hasPrice:
			// Revenue is trusted; only back-fill the unit price for display.
			if r.Quantity > 0 {
				r.UnitPrice = r.LineRevenue / r.Quantity
			}
			r.PriceSource = SourceTotalOnly
			report.Strategies.TotalOnly++

		case !hasRevenue && !hasPrice:
			report.Strategies.TrulyMissing++
			c.resolveMissing(r, avgPrices, report)
		}
	}

	for i := range out {
		tagSources(&out[i])
		scoreRecord(&out[i])
	}

	report.finalize(out, time.Now())

	c.logger.InfoContext(ctx, "enrichment cascade completed",
		slog.Int("rows", len(out)),
		slog.Int("truly_missing", report.Strategies.TrulyMissing),
		slog.Int("inferred_from_entity_avg", report.Strategies.FromEntityAvg),
		slog.Int("inferred_from_catalog", report.Strategies.FromCatalog),
		slog.Int("unresolved", report.Strategies.Unresolved),
		slog.Float64("revenue_delta", report.After.RevenueDelta))

	return out, report
}

// resolveMissing applies the inference strategies to a truly-missing row.
func (c *Cascade) resolveMissing(r *Record, avgPrices map[string]float64, report *Report) {
	if avg, ok := avgPrices[r.EntityID]; ok && avg > 0 {
		r.UnitPrice = avg
		r.LineRevenue = r.Quantity * r.UnitPrice
		r.PriceSource = SourceEntityAvg
		report.Strategies.FromEntityAvg++
		return
	}

	if price, ok := c.catalog.Lookup(r.EntityID); ok {
		r.UnitPrice = price
		r.LineRevenue = r.Quantity * r.UnitPrice
		r.PriceSource = SourceCatalog
		report.Strategies.FromCatalog++
		return
	}

	// Neither signal available. Values stay at zero.
	r.PriceSource = SourceUnresolved
	report.Strategies.Unresolved++
}

// tagSources stamps the dimensional provenance columns.
func tagSources(r *Record) {
	r.RegionSource = RegionOriginal
	if !r.HasRegion() {
		r.RegionSource = RegionUnfixable
	}
	r.CustomerSource = CustomerOriginal
	if !r.HasCustomer() {
		r.CustomerSource = CustomerMissing
	}
}

// entityAveragePrices computes each entity's mean effective price across the
// rows that carry a usable price signal. Effective price prefers
// revenue/quantity over the raw unit price when both are available.
func entityAveragePrices(records []Record) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, r := range records {
		price := effectivePrice(r)
		if price <= 0 {
			continue
		}
		sums[r.EntityID] += price
		counts[r.EntityID]++
	}

	avgs := make(map[string]float64, len(sums))
	for id, sum := range sums {
		avgs[id] = sum / float64(counts[id])
	}
	return avgs
}

func effectivePrice(r Record) float64 {
	if r.LineRevenue > 0 && r.Quantity > 0 {
		return r.LineRevenue / r.Quantity
	}
	return r.UnitPrice
}
