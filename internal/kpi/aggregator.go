// Package kpi merges the live, legacy and city-level fraud sources into the
// dashboard's KPI row.
package kpi

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jengzang/scam-dashboard-go/internal/fetcher"
	"github.com/jengzang/scam-dashboard-go/internal/models"
	"github.com/jengzang/scam-dashboard-go/internal/source"
)

const (
	pathKPILive      = "/api/kpi_live"
	pathKPILegacy    = "/api/kpi_data"
	pathCityProxy    = "/api/monthly_city_fraud"
	sourceLive       = "kpi_live"
	sourceLegacy     = "kpi_data"
	sourceCityDirect = "city_direct"
	sourceCityProxy  = "city_proxy"
)

// Config selects the city-level source and the locality to highlight.
type Config struct {
	CityFraudURL   string
	TargetCityID   int
	TargetCityName string
}

// Aggregator builds KPISnapshots. It holds no snapshot state of its own.
type Aggregator struct {
	client *fetcher.Client
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewAggregator creates an aggregator.
func NewAggregator(client *fetcher.Client, cfg Config, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{client: client, cfg: cfg, logger: logger, now: time.Now}
}

// Aggregate runs every step in order. A failing step leaves its fields at the
// placeholder and never stops the steps after it.
func (a *Aggregator) Aggregate(ctx context.Context) models.KPISnapshot {
	snap := models.NewKPISnapshot()

	live := source.Decode(a.client.Get(ctx, pathKPILive, nil), source.KPILive)
	if live.Available {
		if live.Value.TotalCases != nil {
			snap.MonthlyCases = FormatCount(*live.Value.TotalCases)
		}
		if live.Value.TotalLosses != nil {
			snap.MonthlyLoss = FormatLoss(*live.Value.TotalLosses)
		}
		snap.TopFive = live.Value.TopFive
		snap.Sources = append(snap.Sources, sourceLive)
	} else {
		a.logger.Warn("live KPI unavailable", zap.String("reason", live.Reason))
	}

	legacy := source.Decode(a.client.Get(ctx, pathKPILegacy, nil), source.KPILegacy)
	if legacy.Available && legacy.Value.AIInterceptions != nil {
		snap.AIInterceptions = FormatCount(*legacy.Value.AIInterceptions)
		snap.Sources = append(snap.Sources, sourceLegacy)
	} else if !legacy.Available {
		a.logger.Warn("legacy KPI unavailable", zap.String("reason", legacy.Reason))
	}

	rows, from := a.cityRows(ctx)
	if row, ok := MatchLocality(rows, a.cfg.TargetCityID, a.cfg.TargetCityName); ok {
		snap.MonthlyCases = FormatCount(row.Cases)
		snap.MonthlyLoss = FormatLoss(row.Losses)
		snap.Sources = append(snap.Sources, from)
	} else if len(rows) > 0 {
		a.logger.Info("target locality not in city dataset",
			zap.Int("city_id", a.cfg.TargetCityID), zap.String("name", a.cfg.TargetCityName))
	}

	snap.UpdatedAt = a.now()
	return snap
}

// cityRows tries the external source first and the backend proxy second.
// The proxy receives the same query truncated to the day.
func (a *Aggregator) cityRows(ctx context.Context) ([]models.CityRow, string) {
	day := a.now().Format("2006-01-02")

	if a.cfg.CityFraudURL != "" {
		direct := source.Decode(a.client.Get(ctx, a.cfg.CityFraudURL, url.Values{
			"date":         {day + "T16:00:00Z"},
			"standardized": {"true"},
		}), source.CityRows)
		if direct.Available {
			return direct.Value, sourceCityDirect
		}
		a.logger.Warn("direct city fraud fetch failed, using proxy", zap.String("reason", direct.Reason))
	}

	proxy := source.Decode(a.client.Get(ctx, pathCityProxy, url.Values{"date": {day}}), source.CityRows)
	if !proxy.Available {
		a.logger.Warn("city fraud proxy unavailable", zap.String("reason", proxy.Reason))
		return nil, ""
	}
	return proxy.Value, sourceCityProxy
}

// MatchLocality finds the target row. An identifier match anywhere in the
// dataset wins over a substring match on the name.
func MatchLocality(rows []models.CityRow, id int, name string) (models.CityRow, bool) {
	if id != 0 {
		for _, r := range rows {
			if r.CityID == id {
				return r, true
			}
		}
	}
	if name != "" {
		for _, r := range rows {
			if strings.Contains(r.Name, name) {
				return r, true
			}
		}
	}
	return models.CityRow{}, false
}
