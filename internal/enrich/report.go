package enrich

import (
	"time"
)

// Snapshot captures ledger-level counts at one point of the cascade.
type Snapshot struct {
	Rows             int     `json:"rows"`
	TotalRevenue     float64 `json:"total_revenue"`
	ZeroPriceRows    int     `json:"zero_price_rows"`
	ZeroRevenueRows  int     `json:"zero_revenue_rows"`
	UnknownRegions   int     `json:"unknown_regions"`
	MissingCustomers int     `json:"missing_customers"`

	// Only populated on the after snapshot.
	RevenueDelta    float64 `json:"revenue_delta,omitempty"`
	RevenueDeltaPct float64 `json:"revenue_delta_pct,omitempty"`
	AvgQualityScore float64 `json:"avg_quality_score,omitempty"`
}

// StrategyCounts breaks down how missing values were resolved.
type StrategyCounts struct {
	TrulyMissing  int `json:"truly_missing"`
	TotalOnly     int `json:"had_total_no_unit_price"`
	FromEntityAvg int `json:"inferred_from_entity_avg"`
	FromCatalog   int `json:"inferred_from_catalog"`
	Unresolved    int `json:"unresolved"`
}

// Report is the enrichment audit trail. It is a required artifact of every
// cascade run and is persisted alongside the enriched ledger.
type Report struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Before      Snapshot            `json:"before"`
	After       Snapshot            `json:"after"`
	Strategies  StrategyCounts      `json:"strategies"`
	Tiers       map[QualityTier]int `json:"quality_tiers"`
}

// EnrichmentRate is the share of truly-missing rows the cascade resolved,
// as a percentage. With nothing to resolve the rate is 100.
func (r *Report) EnrichmentRate() float64 {
	if r.Strategies.TrulyMissing == 0 {
		return 100
	}
	resolved := r.Strategies.TrulyMissing - r.Strategies.Unresolved
	return 100 * float64(resolved) / float64(r.Strategies.TrulyMissing)
}

func newReport(records []Record) *Report {
	return &Report{
		Before: snapshot(records),
		Tiers:  make(map[QualityTier]int),
	}
}

// finalize fills the after-state once all strategies and scoring have run.
func (r *Report) finalize(records []Record, now time.Time) {
	r.GeneratedAt = now
	r.After = snapshot(records)
	r.After.RevenueDelta = r.After.TotalRevenue - r.Before.TotalRevenue
	if r.Before.TotalRevenue > 0 {
		r.After.RevenueDeltaPct = 100 * r.After.RevenueDelta / r.Before.TotalRevenue
	}

	var scoreSum int
	for _, rec := range records {
		r.Tiers[rec.QualityTier]++
		scoreSum += rec.QualityScore
	}
	if len(records) > 0 {
		r.After.AvgQualityScore = float64(scoreSum) / float64(len(records))
	}
}

func snapshot(records []Record) Snapshot {
	s := Snapshot{Rows: len(records)}
	for _, rec := range records {
		s.TotalRevenue += rec.LineRevenue
		if rec.UnitPrice == 0 {
			s.ZeroPriceRows++
		}
		if rec.LineRevenue == 0 {
			s.ZeroRevenueRows++
		}
		if !rec.HasRegion() {
			s.UnknownRegions++
		}
		if !rec.HasCustomer() {
			s.MissingCustomers++
		}
	}
	return s
}
