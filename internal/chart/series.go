package chart

import (
	"sort"

	"github.com/jengzang/scam-dashboard-go/internal/models"
)

const (
	placeholderLabel = "暫無資料"
	placeholderColor = "#d0d5dd"
)

// Placeholder is the single neutral category shown when a source has no data.
func Placeholder() models.ChartSeries {
	return models.ChartSeries{Labels: []string{placeholderLabel}, Data: []float64{1}}
}

// SortDescending orders a series by value, largest first. Ties keep their
// source order.
func SortDescending(s models.ChartSeries) models.ChartSeries {
	idx := make([]int, len(s.Data))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return s.Data[idx[a]] > s.Data[idx[b]] })

	out := models.ChartSeries{
		Labels: make([]string, len(idx)),
		Data:   make([]float64, len(idx)),
	}
	for i, j := range idx {
		out.Labels[i] = s.Labels[j]
		out.Data[i] = s.Data[j]
	}
	return out
}

// FromCityRows builds a case-count ranking from city rows.
func FromCityRows(rows []models.CityRow) models.ChartSeries {
	s := models.ChartSeries{
		Labels: make([]string, 0, len(rows)),
		Data:   make([]float64, 0, len(rows)),
	}
	for _, r := range rows {
		s.Labels = append(s.Labels, r.Name)
		s.Data = append(s.Data, r.Cases)
	}
	return s
}
