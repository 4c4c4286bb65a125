package source

import (
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jengzang/scam-dashboard-go/internal/models"
	"github.com/jengzang/scam-dashboard-go/internal/normalize"
)

// errorField returns the upstream error message, if the payload carries one.
func errorField(v gjson.Result) (string, bool) {
	e := v.Get("error")
	if !e.Exists() || e.Type == gjson.Null {
		return "", false
	}
	msg := e.String()
	if msg == "" {
		msg = "upstream reported an error"
	}
	return msg, true
}

func optionalFloat(v gjson.Result, keys ...string) *float64 {
	f := normalize.First(v, keys...)
	if !f.Exists() {
		return nil
	}
	switch f.Type {
	case gjson.Number:
		n := f.Float()
		return &n
	case gjson.String:
		n := f.Float()
		if n == 0 && strings.TrimSpace(f.Str) != "0" {
			return nil
		}
		return &n
	}
	return nil
}

// KPILive decodes /api/kpi_live.
func KPILive(raw []byte) Maybe[models.KPILive] {
	v := normalize.Unwrap(raw)
	if !v.IsObject() {
		return Unavailable[models.KPILive]("live KPI payload is not an object")
	}
	if msg, ok := errorField(v); ok {
		return Unavailable[models.KPILive](msg)
	}

	live := models.KPILive{
		TotalCases:  optionalFloat(v, "TotalCases", "totalCases"),
		TotalLosses: optionalFloat(v, "TotalLosses", "totalLosses"),
		TopFive:     cityRows(normalize.Array(normalize.First(v, "TopFive", "topFive"))),
	}
	if live.TotalCases == nil && live.TotalLosses == nil && len(live.TopFive) == 0 {
		return Unavailable[models.KPILive]("live KPI payload has no known fields")
	}
	return Some(live)
}

// KPILegacy decodes /api/kpi_data.
func KPILegacy(raw []byte) Maybe[models.KPILegacy] {
	v := gjson.ParseBytes(raw)
	if !v.IsObject() {
		return Unavailable[models.KPILegacy]("legacy KPI payload is not an object")
	}
	if msg, ok := errorField(v); ok {
		return Unavailable[models.KPILegacy](msg)
	}

	legacy := models.KPILegacy{
		MonthlyCases:    optionalFloat(v, "monthly_cases"),
		AIInterceptions: optionalFloat(v, "ai_interceptions"),
	}
	if loss := v.Get("monthly_loss"); loss.Exists() && loss.Type != gjson.Null {
		legacy.MonthlyLoss = loss.String()
	}
	return Some(legacy)
}

// CityRows decodes the daily/monthly city fraud datasets.
func CityRows(raw []byte) Maybe[[]models.CityRow] {
	v := gjson.ParseBytes(raw)
	if msg, ok := errorField(v); ok && v.IsObject() {
		return Unavailable[[]models.CityRow](msg)
	}
	rows := cityRows(normalize.Array(v))
	if len(rows) == 0 {
		return Unavailable[[]models.CityRow]("city dataset is empty")
	}
	return Some(rows)
}

func cityRows(items []gjson.Result) []models.CityRow {
	rows := make([]models.CityRow, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		row := models.CityRow{
			CityID: int(normalize.First(item, "CityId", "cityId", "CityID", "Id").Int()),
			Name:   normalize.First(item, "Name", "City", "name", "city").String(),
			Cases:  normalize.First(item, "Cases", "cases").Float(),
			Losses: normalize.First(item, "Losses", "losses").Float(),
		}
		rows = append(rows, row)
	}
	return rows
}

// Series decodes a {labels, data} chart payload. Mismatched lengths are
// unavailable but still carry the series.
func Series(raw []byte) Maybe[models.ChartSeries] {
	v := gjson.ParseBytes(raw)
	if !v.IsObject() {
		return Unavailable[models.ChartSeries]("chart payload is not an object")
	}
	if msg, ok := errorField(v); ok {
		return Unavailable[models.ChartSeries](msg)
	}

	var series models.ChartSeries
	for _, l := range normalize.Array(v.Get("labels")) {
		series.Labels = append(series.Labels, l.String())
	}
	for _, d := range normalize.Array(v.Get("data")) {
		series.Data = append(series.Data, d.Float())
	}
	if err := series.Validate(); err != nil {
		// Keep the malformed series so the renderer can reject it.
		return Maybe[models.ChartSeries]{Value: series, Reason: err.Error()}
	}
	return Some(series)
}

// MetricPoints decodes /api/village_scam_data. Points without usable
// coordinates are kept with NaN coordinates so the map layer can count and
// skip them.
func MetricPoints(raw []byte) Maybe[[]models.MetricPoint] {
	v := gjson.ParseBytes(raw)
	if msg, ok := errorField(v); ok && v.IsObject() {
		return Unavailable[[]models.MetricPoint](msg)
	}
	items := normalize.Array(v)
	if !v.IsArray() && len(items) == 0 {
		return Unavailable[[]models.MetricPoint]("village payload carries no records")
	}

	points := make([]models.MetricPoint, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		points = append(points, models.MetricPoint{
			Name:       normalize.First(item, "name", "location.name", "里名").String(),
			Lat:        coordinate(item, "lat", "location.lat"),
			Lng:        coordinate(item, "lng", "location.lng", "lon", "location.lon"),
			Investment: item.Get(string(models.MetricInvestment)).Float(),
			Shopping:   item.Get(string(models.MetricShopping)).Float(),
			Auction:    item.Get(string(models.MetricAuction)).Float(),
			Dating:     item.Get(string(models.MetricDating)).Float(),
			Marriage:   item.Get(string(models.MetricMarriage)).Float(),
		})
	}
	return Some(points)
}

func coordinate(item gjson.Result, keys ...string) float64 {
	c := normalize.First(item, keys...)
	if c.Type != gjson.Number {
		return math.NaN()
	}
	return c.Float()
}

// MapsKey decodes /api/maps_key.
func MapsKey(raw []byte) Maybe[string] {
	key := strings.TrimSpace(gjson.GetBytes(raw, "key").String())
	if key == "" {
		return Unavailable[string]("maps key is empty")
	}
	return Some(key)
}
