package models

// ChartQuery represents query parameters of the chart endpoints
type ChartQuery struct {
	Format string `form:"format" binding:"omitempty,oneof=html json"` // html (default) or json
	Fresh  bool   `form:"fresh"`                                      // refetch the slot before rendering
}

// WantsJSON reports whether the caller asked for chart options instead of HTML
func (q ChartQuery) WantsJSON() bool {
	return q.Format == "json"
}

// ToggleRequest represents the body of PUT /dashboard/map/toggles.
// Omitted fields keep their current value.
type ToggleRequest struct {
	Circles *bool     `json:"circles"`
	Metrics *[]Metric `json:"metrics"`
}

// AnalyzeRequest represents the body of POST /dashboard/analyze
type AnalyzeRequest struct {
	Text string `json:"text"`
}
