package feature

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"dpcli/internal/enrich"
	"dpcli/internal/ledger"
)

// Builder converts enriched ledger records into the feature table.
type Builder struct {
	cfg    Config
	logger *slog.Logger
}

// NewBuilder validates the configuration and returns a builder.
func NewBuilder(cfg Config, logger *slog.Logger) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{cfg: cfg, logger: logger}, nil
}

// Config returns the feature configuration the builder was created with.
func (b *Builder) Config() Config { return b.cfg }

// Build aggregates the records at the given entity level and derives all
// temporal features. Output rows are sorted by (entity, week) and unique on
// that pair.
func (b *Builder) Build(ctx context.Context, records []enrich.Record, level ledger.Level) ([]Row, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("feature build: empty ledger")
	}

	series := b.aggregate(records, level)

	entities := make([]string, 0, len(series))
	for entity := range series {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	var out []Row
	for _, entity := range entities {
		rows := series[entity]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Week.Before(rows[j].Week) })
		if b.cfg.ZeroFillGaps {
			rows = zeroFill(rows)
		}
		b.derive(rows)
		out = append(out, rows...)
	}

	b.logger.InfoContext(ctx, "feature table built",
		slog.String("level", string(level)),
		slog.Int("entities", len(entities)),
		slog.Int("rows", len(out)))

	return out, nil
}

// aggregate sums each entity's activity per week: quantity and revenue
// totals, mean line price, distinct orders and customers, mean quality.
func (b *Builder) aggregate(records []enrich.Record, level ledger.Level) map[string][]Row {
	type bucket struct {
		row       Row
		priceSum  float64
		lines     int
		orders    map[string]struct{}
		customers map[string]struct{}
		quality   int
	}

	buckets := make(map[string]map[ledger.Week]*bucket)
	for _, rec := range records {
		entity := level.Key(rec.TransactionRow)
		weeks, ok := buckets[entity]
		if !ok {
			weeks = make(map[ledger.Week]*bucket)
			buckets[entity] = weeks
		}
		bk, ok := weeks[rec.Week]
		if !ok {
			bk = &bucket{
				row: Row{
					EntityID:    entity,
					Week:        rec.Week,
					QuantityLag: map[int]float64{},
					PriceLag:    map[int]float64{},
				},
				orders:    make(map[string]struct{}),
				customers: make(map[string]struct{}),
			}
			weeks[rec.Week] = bk
		}

		bk.row.WeeklyQuantity += rec.Quantity
		bk.row.WeeklyRevenue += rec.LineRevenue
		bk.priceSum += rec.UnitPrice
		bk.lines++
		bk.quality += rec.QualityScore
		if rec.OrderID != "" {
			bk.orders[rec.OrderID] = struct{}{}
		}
		if rec.HasCustomer() {
			bk.customers[rec.CustomerID] = struct{}{}
		}
	}

	series := make(map[string][]Row, len(buckets))
	for entity, weeks := range buckets {
		rows := make([]Row, 0, len(weeks))
		for _, bk := range weeks {
			if bk.lines > 0 {
				bk.row.AvgPrice = bk.priceSum / float64(bk.lines)
				bk.row.AvgQuality = float64(bk.quality) / float64(bk.lines)
			}
			bk.row.OrderCount = len(bk.orders)
			bk.row.CustomerCount = len(bk.customers)
			rows = append(rows, bk.row)
		}
		series[entity] = rows
	}
	return series
}

// zeroFill inserts explicit zero-activity weeks between an entity's first and
// last observed week. Gaps are never invented outside that range.
func zeroFill(rows []Row) []Row {
	if len(rows) < 2 {
		return rows
	}
	filled := make([]Row, 0, len(rows))
	present := make(map[ledger.Week]bool, len(rows))
	for _, r := range rows {
		present[r.Week] = true
	}

	for w := rows[0].Week; !w.After(rows[len(rows)-1].Week); w = w.Next() {
		if present[w] {
			for _, r := range rows {
				if r.Week == w {
					filled = append(filled, r)
					break
				}
			}
			continue
		}
		filled = append(filled, Row{
			EntityID:    rows[0].EntityID,
			Week:        w,
			QuantityLag: map[int]float64{},
			PriceLag:    map[int]float64{},
		})
	}
	return filled
}

// derive fills the temporal feature columns of a week-sorted entity series.
// Only positions strictly before the current one are ever read.
func (b *Builder) derive(rows []Row) {
	quantities := make([]float64, len(rows))
	prices := make([]float64, len(rows))
	for i, r := range rows {
		quantities[i] = r.WeeklyQuantity
		prices[i] = r.AvgPrice
	}

	for i := range rows {
		r := &rows[i]
		r.WeekOfYear = r.Week.Week
		r.WeekSin = math.Sin(2 * math.Pi * float64(r.WeekOfYear) / 52)
		r.WeekCos = math.Cos(2 * math.Pi * float64(r.WeekOfYear) / 52)
		r.IsPeakWeek = b.cfg.PeakWeek > 0 && r.WeekOfYear == b.cfg.PeakWeek
		r.IsHolidaySeason = b.cfg.HolidayFromWeek > 0 &&
			(r.WeekOfYear >= b.cfg.HolidayFromWeek || r.WeekOfYear <= b.cfg.HolidayToWeek)

		for _, lag := range b.cfg.Lags {
			if i-lag >= 0 {
				r.QuantityLag[lag] = quantities[i-lag]
				r.PriceLag[lag] = prices[i-lag]
			}
		}

		window := trailingWindow(quantities, i, b.cfg.RollingWindow)
		if len(window) > 0 {
			r.RollingMean = mean(window)
			r.RollingStd = stddev(window, r.RollingMean)
			r.RollingMin, r.RollingMax = minMax(window)
			r.Trend = slope(window)
		}
		if r.RollingMean != 0 {
			r.CV = r.RollingStd / r.RollingMean
		}

		lag1, ok1 := r.QuantityLag[1]
		lag2, ok2 := r.QuantityLag[2]
		if ok1 && ok2 {
			r.Momentum = lag1 - lag2
		}

		priceWindow := trailingWindow(prices, i, b.cfg.RollingWindow)
		if p1, ok := r.PriceLag[1]; ok && len(priceWindow) > 0 {
			r.PriceTrend = mean(priceWindow) - p1
		}
	}
}

// trailingWindow returns up to n values strictly before position i.
func trailingWindow(values []float64, i, n int) []float64 {
	start := i - n
	if start < 0 {
		start = 0
	}
	return values[start:i]
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation; fewer than two observations yield
// zero rather than an undefined value.
func stddev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func minMax(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// slope fits a least-squares line over the window positions and returns its
// gradient; fewer than two points give zero.
func slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
