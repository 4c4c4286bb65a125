package models

// HeatmapPoint is one weighted sample of the combined heat overlay
type HeatmapPoint struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Weight float64 `json:"weight"`
	Metric Metric  `json:"metric"` // metric that contributed the sample
	Name   string  `json:"name"`   // village
}

// HeatmapOverlay is the combined overlay sent to the client map library
type HeatmapOverlay struct {
	Points   []HeatmapPoint `json:"points"`
	Count    int            `json:"count"`
	Metrics  []Metric       `json:"metrics"`
	Gradient []string       `json:"gradient"`
	Radius   int            `json:"radius"`
}
