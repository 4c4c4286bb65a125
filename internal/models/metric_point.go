package models

import "math"

// Metric is one of the five scam categories scored per village.
type Metric string

const (
	MetricInvestment Metric = "investment"
	MetricShopping   Metric = "shopping"
	MetricAuction    Metric = "auction"
	MetricDating     Metric = "dating"
	MetricMarriage   Metric = "marriage"
)

// MetricInfo pairs a metric with its display label.
type MetricInfo struct {
	Key   Metric `json:"key"`
	Label string `json:"label"`
}

// Metrics lists every metric in display order.
var Metrics = []MetricInfo{
	{Key: MetricInvestment, Label: "投資"},
	{Key: MetricShopping, Label: "網購"},
	{Key: MetricAuction, Label: "假網拍"},
	{Key: MetricDating, Label: "假交友"},
	{Key: MetricMarriage, Label: "徵婚"},
}

// ParseMetric validates a metric key.
func ParseMetric(s string) (Metric, bool) {
	for _, m := range Metrics {
		if string(m.Key) == s {
			return m.Key, true
		}
	}
	return "", false
}

// Label returns the display label of a metric.
func (m Metric) Label() string {
	for _, info := range Metrics {
		if info.Key == m {
			return info.Label
		}
	}
	return string(m)
}

// MetricPoint carries the 0-100 risk scores of one village.
type MetricPoint struct {
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Investment float64 `json:"investment"`
	Shopping   float64 `json:"shopping"`
	Auction    float64 `json:"auction"`
	Dating     float64 `json:"dating"`
	Marriage   float64 `json:"marriage"`
}

// Value returns the score of one metric.
func (p MetricPoint) Value(m Metric) float64 {
	switch m {
	case MetricInvestment:
		return p.Investment
	case MetricShopping:
		return p.Shopping
	case MetricAuction:
		return p.Auction
	case MetricDating:
		return p.Dating
	case MetricMarriage:
		return p.Marriage
	}
	return 0
}

// Valid reports whether the coordinates are finite.
func (p MetricPoint) Valid() bool {
	return isFinite(p.Lat) && isFinite(p.Lng)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
