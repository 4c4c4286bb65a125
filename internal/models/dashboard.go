package models

import (
	"fmt"
	"time"
)

// Placeholder is shown for any KPI no available source supplied.
const Placeholder = "--"

// KPISnapshot is the display-ready KPI row of the dashboard.
type KPISnapshot struct {
	MonthlyLoss     string    `json:"monthly_loss"`
	MonthlyCases    string    `json:"monthly_cases"`
	AIInterceptions string    `json:"ai_interceptions"`
	TopFive         []CityRow `json:"top_five,omitempty"`
	Sources         []string  `json:"sources"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewKPISnapshot returns a snapshot with every field at its placeholder.
func NewKPISnapshot() KPISnapshot {
	return KPISnapshot{
		MonthlyLoss:     Placeholder,
		MonthlyCases:    Placeholder,
		AIInterceptions: Placeholder,
		Sources:         []string{},
	}
}

// CityRow is one locality of a city-level fraud dataset.
type CityRow struct {
	CityID int     `json:"city_id,omitempty"`
	Name   string  `json:"name"`
	Cases  float64 `json:"cases"`
	Losses float64 `json:"losses"` // ten-thousand currency units
}

// KPILive is the decoded primary live-KPI payload.
type KPILive struct {
	TotalCases  *float64
	TotalLosses *float64
	TopFive     []CityRow
}

// KPILegacy is the decoded legacy KPI payload.
type KPILegacy struct {
	MonthlyLoss     string
	MonthlyCases    *float64
	AIInterceptions *float64
}

// ChartSeries is a label/value sequence with positional correspondence.
type ChartSeries struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// Validate rejects series whose labels and values do not line up.
func (s ChartSeries) Validate() error {
	if len(s.Labels) != len(s.Data) {
		return fmt.Errorf("malformed series: %d labels, %d values", len(s.Labels), len(s.Data))
	}
	return nil
}

// Empty reports whether the series has no categories.
func (s ChartSeries) Empty() bool {
	return len(s.Labels) == 0
}
