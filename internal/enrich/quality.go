package enrich

// Quality score penalties. The score starts at 100 per row and is clamped to
// [0,100] after all deductions.
const (
	penaltyInferredPrice   = 10 // price came from a strategy, not the source row
	penaltyZeroRevenue     = 30 // revenue still zero after the full cascade
	penaltyUnknownRegion   = 20
	penaltyMissingCustomer = 10
)

// scoreRecord assigns the quality score and tier for a single record.
func scoreRecord(r *Record) {
	score := 100

	if r.PriceSource == SourceEntityAvg || r.PriceSource == SourceCatalog {
		score -= penaltyInferredPrice
	}
	if r.UnitPrice == 0 && r.LineRevenue == 0 {
		score -= penaltyZeroRevenue
	}
	if !r.HasRegion() {
		score -= penaltyUnknownRegion
	}
	if !r.HasCustomer() {
		score -= penaltyMissingCustomer
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	r.QualityScore = score
	r.QualityTier = tierFor(score)
}

func tierFor(score int) QualityTier {
	switch {
	case score < 50:
		return TierPoor
	case score < 70:
		return TierFair
	case score < 90:
		return TierGood
	default:
		return TierExcellent
	}
}
