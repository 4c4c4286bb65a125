// Package dashboard boots the KPI row, every chart slot and the map at once.
package dashboard

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/scam-dashboard-go/internal/chart"
	"github.com/jengzang/scam-dashboard-go/internal/fetcher"
	"github.com/jengzang/scam-dashboard-go/internal/kpi"
	"github.com/jengzang/scam-dashboard-go/internal/maplayer"
)

// MapFactory creates the map controller of one boot.
type MapFactory func() *maplayer.Controller

// Dashboard wires the components a boot runs.
type Dashboard struct {
	enabled    bool
	client     *fetcher.Client
	aggregator *kpi.Aggregator
	renderer   *chart.Renderer
	slots      []Slot
	newMap     MapFactory
	timeout    time.Duration
	logger     *zap.Logger
}

// Params holds Dashboard dependencies.
type Params struct {
	Enabled    bool
	Client     *fetcher.Client
	Aggregator *kpi.Aggregator
	Renderer   *chart.Renderer
	Slots      []Slot
	NewMap     MapFactory    // nil leaves the map out
	Timeout    time.Duration // bounds a whole boot; zero means none
	Logger     *zap.Logger
}

// New creates a dashboard.
func New(p Params) *Dashboard {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Renderer == nil {
		p.Renderer = chart.NewRenderer(chart.NewRegistry())
	}
	return &Dashboard{
		enabled:    p.Enabled,
		client:     p.Client,
		aggregator: p.Aggregator,
		renderer:   p.Renderer,
		slots:      p.Slots,
		newMap:     p.NewMap,
		timeout:    p.Timeout,
		logger:     p.Logger,
	}
}

// Enabled reports whether the dashboard container is configured.
func (d *Dashboard) Enabled() bool { return d.enabled }

// Renderer returns the renderer whose registry holds the booted charts.
func (d *Dashboard) Renderer() *chart.Renderer { return d.renderer }

// Aggregator returns the KPI aggregator.
func (d *Dashboard) Aggregator() *kpi.Aggregator { return d.aggregator }

// Slots returns the configured chart slots.
func (d *Dashboard) Slots() []Slot { return d.slots }

// Boot starts KPI aggregation, every chart slot and map initialization
// concurrently and returns at once. Each part of the view fills in when its
// own task finishes, so a slow source only delays its own part. No task
// failure aborts another; each degrades to its placeholder. The tasks outlive
// ctx's cancellation but keep its values. A disabled dashboard does nothing.
func (d *Dashboard) Boot(ctx context.Context) *View {
	view := newView(d.enabled)
	if !d.enabled {
		close(view.done)
		return view
	}

	ctx = context.WithoutCancel(ctx)
	cancel := func() {}
	if d.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
	}
	ctx = fetcher.WithSharedGets(ctx)

	g, gctx := errgroup.WithContext(ctx)

	if d.aggregator != nil {
		view.expect(PartKPIs)
		g.Go(func() error {
			snap := d.aggregator.Aggregate(gctx)
			view.setKPIs(snap)
			return nil
		})
	}

	for _, slot := range d.slots {
		slot := slot
		view.expect(slot.Name)
		g.Go(func() error {
			spec, err := d.renderSlot(gctx, slot)
			view.setChart(slot.Name, spec, err)
			return nil
		})
	}

	if d.newMap != nil {
		view.controller = d.newMap()
		view.expect(PartMap)
		g.Go(func() error {
			if err := view.controller.Init(gctx); err != nil {
				d.logger.Warn("map unavailable", zap.Error(err))
			}
			view.finish(PartMap)
			return nil
		})
	}

	go func() {
		defer cancel()
		_ = g.Wait()
		close(view.done)

		snap := view.Snapshot()
		d.logger.Info("dashboard booted",
			zap.Int("charts", len(snap.Charts)),
			zap.Int("chart_errors", len(snap.ChartErrors)),
			zap.Duration("elapsed", time.Since(snap.BootedAt)))
	}()
	return view
}

// RenderSlot fetches and renders one slot by name.
func (d *Dashboard) RenderSlot(ctx context.Context, name string) (chart.Spec, bool, error) {
	for _, slot := range d.slots {
		if slot.Name == name {
			spec, err := d.renderSlot(ctx, slot)
			return spec, true, err
		}
	}
	return chart.Spec{}, false, nil
}

// renderSlot renders an unavailable source as the placeholder chart. Only a
// malformed series is an error.
func (d *Dashboard) renderSlot(ctx context.Context, slot Slot) (chart.Spec, error) {
	series := slot.Series(ctx, d.client)
	if !series.Available {
		d.logger.Warn("chart source unavailable",
			zap.String("slot", slot.Name), zap.String("reason", series.Reason))
	}

	h, err := d.renderer.RenderSeries(slot.Name, slot.Kind, series.Value, slot.Options)
	if err != nil {
		d.logger.Warn("chart render failed", zap.String("slot", slot.Name), zap.Error(err))
		return chart.Spec{}, err
	}
	return h.Spec(), nil
}
