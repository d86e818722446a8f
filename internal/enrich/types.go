package enrich

import (
	"dpcli/internal/ledger"
)

// PriceSource tags how a row's economic values were obtained. Every value
// except SourceOriginal is terminal: once assigned it is never revisited.
type PriceSource string

const (
	// SourceOriginal marks untouched rows.
	SourceOriginal PriceSource = "original"
	// SourceEntityAvg marks rows whose price was inferred from the entity's
	// mean effective price across its other transactions.
	SourceEntityAvg PriceSource = "inferred_from_entity_avg"
	// SourceCatalog marks rows back-filled from the reference catalog.
	SourceCatalog PriceSource = "inferred_from_catalog"
	// SourceTotalOnly marks rows that had revenue but no unit price; the
	// price is back-filled for display and the revenue kept as-is.
	SourceTotalOnly PriceSource = "has_total_no_unit_price"
	// SourceUnresolved marks irreparable rows. Price and revenue stay zero.
	SourceUnresolved PriceSource = "unresolved"
)

// Terminal reports whether the source must not be re-inferred on a later pass.
func (s PriceSource) Terminal() bool {
	return s != "" && s != SourceOriginal
}

// Dimensional provenance tags. Regions and customer identities cannot be
// repaired from the ledger alone, so the cascade only records whether the
// value arrived usable.
const (
	RegionOriginal  = "original"
	RegionUnfixable = "unknown_unfixable"

	CustomerOriginal = "original"
	CustomerMissing  = "missing"
)

// QualityTier buckets the per-row quality score.
type QualityTier string

const (
	TierPoor      QualityTier = "poor"      // score < 50
	TierFair      QualityTier = "fair"      // 50 <= score < 70
	TierGood      QualityTier = "good"      // 70 <= score < 90
	TierExcellent QualityTier = "excellent" // score >= 90
)

// Record extends a transaction row with its enrichment outcome. Records are
// created once per row during the cascade pass and are immutable afterward.
type Record struct {
	ledger.TransactionRow

	PriceSource    PriceSource `json:"price_source"`
	RegionSource   string      `json:"region_source"`
	CustomerSource string      `json:"customer_source"`
	QualityScore   int         `json:"quality_score"`
	QualityTier    QualityTier `json:"quality_tier"`

	// Originals are preserved so the audit can always reconstruct what the
	// cascade changed.
	OriginalUnitPrice   float64 `json:"original_unit_price"`
	OriginalLineRevenue float64 `json:"original_line_revenue"`
}

// Wrap lifts raw ledger rows into enrichment records ahead of a first pass.
func Wrap(rows []ledger.TransactionRow) []Record {
	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = Record{
			TransactionRow:      row,
			PriceSource:         SourceOriginal,
			OriginalUnitPrice:   row.UnitPrice,
			OriginalLineRevenue: row.LineRevenue,
		}
	}
	return records
}
