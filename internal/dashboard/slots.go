package dashboard

import (
	"context"

	"github.com/jengzang/scam-dashboard-go/internal/chart"
	"github.com/jengzang/scam-dashboard-go/internal/fetcher"
	"github.com/jengzang/scam-dashboard-go/internal/models"
	"github.com/jengzang/scam-dashboard-go/internal/source"
	"github.com/jengzang/scam-dashboard-go/internal/stats"
)

// SeriesFunc fetches and decodes the data behind one chart slot.
type SeriesFunc func(ctx context.Context, client *fetcher.Client) source.Maybe[models.ChartSeries]

// Slot is one chart container on the dashboard.
type Slot struct {
	Name    string
	Kind    chart.Kind
	Options chart.Options
	Series  SeriesFunc
}

// FromPath reads a {labels, data} series from a backend path.
func FromPath(path string) SeriesFunc {
	return func(ctx context.Context, client *fetcher.Client) source.Maybe[models.ChartSeries] {
		return source.Decode(client.Get(ctx, path, nil), source.Series)
	}
}

// TopFiveRanking charts the live source's city ranking by case count.
func TopFiveRanking(ctx context.Context, client *fetcher.Client) source.Maybe[models.ChartSeries] {
	live := source.Decode(client.Get(ctx, "/api/kpi_live", nil), source.KPILive)
	if !live.Available {
		return source.Unavailable[models.ChartSeries](live.Reason)
	}
	return source.Some(chart.FromCityRows(live.Value.TopFive))
}

// RiskMix charts the mean value of every metric across the village points.
func RiskMix(ctx context.Context, client *fetcher.Client) source.Maybe[models.ChartSeries] {
	points := source.Decode(client.Get(ctx, "/api/village_scam_data", nil), source.MetricPoints)
	if !points.Available {
		return source.Unavailable[models.ChartSeries](points.Reason)
	}
	if len(points.Value) == 0 {
		return source.Some(models.ChartSeries{})
	}

	s := models.ChartSeries{}
	for _, m := range models.Metrics {
		values := make([]float64, len(points.Value))
		for i, p := range points.Value {
			values[i] = p.Value(m.Key)
		}
		s.Labels = append(s.Labels, m.Label)
		s.Data = append(s.Data, stats.Mean(values))
	}
	return source.Some(s)
}

// DefaultSlots are the chart containers of the stock dashboard page.
func DefaultSlots() []Slot {
	return []Slot{
		{
			Name:    "scam_types",
			Kind:    chart.KindPie,
			Options: chart.Options{Title: "詐騙類型分布", SeriesName: "案件數"},
			Series:  FromPath("/api/scam_types_data"),
		},
		{
			Name:    "victim_ages",
			Kind:    chart.KindBar,
			Options: chart.Options{Title: "受害者年齡分布", SeriesName: "人數"},
			Series:  FromPath("/api/victim_ages_data"),
		},
		{
			Name:    "city_ranking",
			Kind:    chart.KindBar,
			Options: chart.Options{Title: "縣市案件排行", SeriesName: "案件數", Horizontal: true, Sort: true},
			Series:  TopFiveRanking,
		},
		{
			Name:    "risk_mix",
			Kind:    chart.KindDoughnut,
			Options: chart.Options{Title: "村里風險組成", SeriesName: "平均指數"},
			Series:  RiskMix,
		},
	}
}
