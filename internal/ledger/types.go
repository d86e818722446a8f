package ledger

import (
	"fmt"
	"strings"
)

// TransactionRow is one line item of the normalized sales ledger. Quantities
// are non-negative; LineRevenue should equal Quantity*UnitPrice once
// enrichment completes, unless the row is irreparable and flagged as such.
type TransactionRow struct {
	EntityID    string  `json:"entity_id"`
	Week        Week    `json:"week_id"`
	OrderID     string  `json:"order_id"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineRevenue float64 `json:"line_revenue"`
	CustomerID  string  `json:"customer_id"`
	CategoryID  string  `json:"category_id"`
	Region      string  `json:"region"`
}

// Validate checks the schema invariants the core relies on.
func (r TransactionRow) Validate() error {
	if r.EntityID == "" {
		return fmt.Errorf("transaction row: empty entity_id")
	}
	if r.Week.IsZero() {
		return fmt.Errorf("transaction row %s: missing week", r.EntityID)
	}
	if r.Quantity < 0 {
		return fmt.Errorf("transaction row %s/%s: negative quantity %.2f", r.EntityID, r.Week, r.Quantity)
	}
	return nil
}

// HasRegion reports whether the row carries a usable region. The upstream
// extractor emits the literal "Unknown" when it could not resolve one.
func (r TransactionRow) HasRegion() bool {
	return r.Region != "" && !strings.EqualFold(r.Region, "unknown")
}

// HasCustomer reports whether the counterpart identity is present.
func (r TransactionRow) HasCustomer() bool {
	return strings.TrimSpace(r.CustomerID) != ""
}

// Level selects the granularity a forecasting run operates at. The same
// pipeline runs per level; only the entity key and the confidence thresholds
// differ.
type Level string

const (
	LevelProduct  Level = "product"
	LevelCategory Level = "category"
	LevelCustomer Level = "customer"
)

// ParseLevel validates and normalizes a level name.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelProduct:
		return LevelProduct, nil
	case LevelCategory:
		return LevelCategory, nil
	case LevelCustomer:
		return LevelCustomer, nil
	default:
		return "", fmt.Errorf("unknown entity level %q (want product, category or customer)", s)
	}
}

// Key returns the forecasted entity key of a row at this level. Rows without
// a usable key map to "Unknown" so they are carried, not dropped; the
// confidence machinery downgrades them instead.
func (l Level) Key(r TransactionRow) string {
	var key string
	switch l {
	case LevelCategory:
		key = r.CategoryID
	case LevelCustomer:
		key = r.CustomerID
	default:
		key = r.EntityID
	}
	if strings.TrimSpace(key) == "" {
		return "Unknown"
	}
	return key
}

// Catalog maps entity identity to a reference price. It backs the final
// inference strategy of the enrichment cascade and is entirely optional.
type Catalog map[string]float64

// Lookup returns the reference price for an entity, if a positive one exists.
func (c Catalog) Lookup(entityID string) (float64, bool) {
	if c == nil {
		return 0, false
	}
	p, ok := c[entityID]
	if !ok || p <= 0 {
		return 0, false
	}
	return p, true
}
