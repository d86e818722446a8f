package feature

import (
	"fmt"
	"math"

	"dpcli/internal/ledger"
)

// Config controls the feature set. Injected, never global; the same builder
// serves every entity level with different parameters.
type Config struct {
	// Lags are the target/price lag distances in weeks.
	Lags []int
	// RollingWindow is the trailing window length for rolling statistics.
	RollingWindow int
	// ZeroFillGaps inserts explicit zero-quantity weeks between an entity's
	// first and last active week. When false, inactive weeks are omitted and
	// lags step over them positionally.
	ZeroFillGaps bool
	// PeakWeek flags one known high-variance calendar week (e.g. the week-47
	// promotional spike in the source data).
	PeakWeek int
	// HolidayFromWeek/HolidayToWeek bound the wrap-around holiday season
	// (weeks >= from OR <= to).
	HolidayFromWeek int
	HolidayToWeek   int
}

// DefaultConfig mirrors the production feature set.
func DefaultConfig() Config {
	return Config{
		Lags:            []int{1, 2, 4},
		RollingWindow:   4,
		PeakWeek:        47,
		HolidayFromWeek: 45,
		HolidayToWeek:   2,
	}
}

// Validate rejects configurations the builder cannot honor.
func (c Config) Validate() error {
	if len(c.Lags) == 0 {
		return fmt.Errorf("feature config: empty lag set")
	}
	for _, lag := range c.Lags {
		if lag < 1 {
			return fmt.Errorf("feature config: lag %d out of range", lag)
		}
	}
	if c.RollingWindow < 1 {
		return fmt.Errorf("feature config: rolling window %d out of range", c.RollingWindow)
	}
	return nil
}

// Row is one feature row per (entity, week). Lag maps hold only defined
// entries; an absent lag means the entity's history is shorter than the lag
// distance, and Vector substitutes zero when handing rows to a trainer.
type Row struct {
	EntityID   string      `json:"entity_id"`
	Week       ledger.Week `json:"week_id"`
	WeekOfYear int         `json:"week_of_year"`

	// Weekly aggregates. WeeklyQuantity is the regression target.
	WeeklyQuantity float64 `json:"weekly_quantity"`
	WeeklyRevenue  float64 `json:"weekly_revenue"`
	AvgPrice       float64 `json:"avg_price"`
	OrderCount     int     `json:"order_count"`
	CustomerCount  int     `json:"customer_count"`
	AvgQuality     float64 `json:"avg_quality"`

	QuantityLag map[int]float64 `json:"quantity_lag"`
	PriceLag    map[int]float64 `json:"price_lag"`

	RollingMean float64 `json:"rolling_mean"`
	RollingStd  float64 `json:"rolling_std"`
	RollingMin  float64 `json:"rolling_min"`
	RollingMax  float64 `json:"rolling_max"`

	Trend      float64 `json:"trend"`       // slope of the trailing window
	Momentum   float64 `json:"momentum"`    // lag1 - lag2
	CV         float64 `json:"cv"`          // rolling_std / rolling_mean, guarded
	PriceTrend float64 `json:"price_trend"` // trailing mean price - lag-1 price

	WeekSin float64 `json:"week_sin"`
	WeekCos float64 `json:"week_cos"`

	IsPeakWeek      bool `json:"is_peak_week"`
	IsHolidaySeason bool `json:"is_holiday_season"`
}

// Names returns the model feature columns in vector order.
func Names(cfg Config) []string {
	names := make([]string, 0, 2*len(cfg.Lags)+12)
	for _, lag := range cfg.Lags {
		names = append(names, fmt.Sprintf("quantity_lag_%dw", lag))
	}
	for _, lag := range cfg.Lags {
		names = append(names, fmt.Sprintf("price_lag_%dw", lag))
	}
	names = append(names,
		"rolling_mean", "rolling_std", "rolling_min", "rolling_max",
		"trend", "momentum", "cv", "price_trend",
		"week_sin", "week_cos", "is_peak_week", "is_holiday_season")
	return names
}

// Vector extracts the model input in the order given by Names. Undefined lags
// and any non-finite value become zero; trainers never see NaN or Inf.
func (r Row) Vector(cfg Config) []float64 {
	vec := make([]float64, 0, 2*len(cfg.Lags)+12)
	for _, lag := range cfg.Lags {
		vec = append(vec, r.QuantityLag[lag])
	}
	for _, lag := range cfg.Lags {
		vec = append(vec, r.PriceLag[lag])
	}
	vec = append(vec,
		r.RollingMean, r.RollingStd, r.RollingMin, r.RollingMax,
		r.Trend, r.Momentum, r.CV, r.PriceTrend,
		r.WeekSin, r.WeekCos, boolFeature(r.IsPeakWeek), boolFeature(r.IsHolidaySeason))

	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			vec[i] = 0
		}
	}
	return vec
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
