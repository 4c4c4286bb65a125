package maplayer

import (
	"fmt"

	"github.com/jengzang/scam-dashboard-go/internal/models"
	"github.com/jengzang/scam-dashboard-go/internal/stats"
)

// scoreWeights feed the click-detail risk score, in models.Metrics order.
var scoreWeights = []float64{0.35, 0.10, 0.20, 0.25, 0.10}

// Score is the weighted risk score shown in the click-detail popup. It does
// not feed the heat overlay.
func Score(p models.MetricPoint) float64 {
	values := make([]float64, len(models.Metrics))
	for i, m := range models.Metrics {
		values[i] = p.Value(m.Key)
	}
	return stats.WeightedSum(values, scoreWeights)
}

// HeatTuning sets the visual intensity of the combined overlay.
type HeatTuning struct {
	Base  float64 // weight of a single metric at value 100
	Boost float64 // extra weight per additional selected metric
}

// DefaultHeatTuning is the stock overlay intensity.
var DefaultHeatTuning = HeatTuning{Base: 60, Boost: 0.4}

// Weight is the heat sample weight of one metric value with selected
// metrics active. Selecting several metrics boosts every sample
// superlinearly so overlapping categories fuse into stronger spots.
func (t HeatTuning) Weight(value float64, selected int) float64 {
	if selected < 1 {
		selected = 1
	}
	return (value / 100) * t.Base * (1 + t.Boost*float64(selected-1))
}

// metricColors is the fixed palette for single-metric circles.
var metricColors = map[models.Metric]string{
	models.MetricInvestment: "#e63946",
	models.MetricShopping:   "#f4a261",
	models.MetricAuction:    "#2a9d8f",
	models.MetricDating:     "#9b5de5",
	models.MetricMarriage:   "#f15bb5",
}

// MetricColor returns the single-metric circle colour.
func MetricColor(m models.Metric) string {
	if c, ok := metricColors[m]; ok {
		return c
	}
	return "#888888"
}

// HeatGradient is the combined overlay ramp, transparent green to opaque red.
// The heat library maps accumulated weight onto it.
var HeatGradient = []string{
	"rgba(0,255,0,0)",
	"rgba(102,255,0,0.4)",
	"rgba(173,255,47,0.55)",
	"rgba(255,255,0,0.7)",
	"rgba(255,200,0,0.8)",
	"rgba(255,140,0,0.9)",
	"rgba(255,69,0,0.95)",
	"rgba(255,0,0,1)",
}

// RampColor maps a 0-100 value from green through yellow to red.
func RampColor(v float64) string {
	v = stats.Clamp(v, 0, 100)
	if v <= 50 {
		r := int(v/50*255 + 0.5)
		return fmt.Sprintf("rgb(%d,200,0)", r)
	}
	g := int(200 - (v-50)/50*200 + 0.5)
	return fmt.Sprintf("rgb(255,%d,0)", g)
}

const (
	minRadius = 120.0  // meters
	maxRadius = 1200.0 // meters
)

// RadiusForValue maps a 0-100 value onto a circle radius in meters.
func RadiusForValue(v float64) float64 {
	t := stats.Clamp(v, 0, 100) / 100
	return minRadius + t*(maxRadius-minRadius)
}

// LegendItem is one entry of the custom map legend.
type LegendItem struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Legend describes what the current layers mean.
type Legend struct {
	Title    string       `json:"title"`
	Items    []LegendItem `json:"items"`
	Gradient []string     `json:"gradient,omitempty"`
}

func buildLegend(selected []models.Metric, overlay bool) Legend {
	legend := Legend{Title: "詐騙風險圖層"}
	switch len(selected) {
	case 0:
		legend.Title = "未選擇圖層"
	case 1:
		legend.Items = []LegendItem{{Label: selected[0].Label(), Color: MetricColor(selected[0])}}
	default:
		legend.Title = "綜合風險"
		for _, m := range selected {
			legend.Items = append(legend.Items, LegendItem{Label: m.Label(), Color: MetricColor(m)})
		}
		legend.Items = append(legend.Items,
			LegendItem{Label: "低", Color: RampColor(0)},
			LegendItem{Label: "中", Color: RampColor(50)},
			LegendItem{Label: "高", Color: RampColor(100)},
		)
	}
	if overlay {
		legend.Gradient = HeatGradient
	}
	return legend
}
