// Package chart renders dashboard series as ECharts widgets and keeps the
// widget bound to each slot in an explicit registry.
package chart

import (
	"fmt"
	"io"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/render"

	"github.com/jengzang/scam-dashboard-go/internal/models"
)

// Kind is a supported chart type.
type Kind string

const (
	KindPie      Kind = "pie"
	KindDoughnut Kind = "doughnut"
	KindBar      Kind = "bar"
)

// Palette is the category palette used by pie and doughnut charts.
var Palette = []string{"#005a9c", "#00a6fb", "#13c4a3", "#f77f00", "#adb5bd"}

const (
	barColor    = "#00a6fb"
	chartWidth  = "600px"
	chartHeight = "400px"
)

// Options controls one render.
type Options struct {
	Title      string
	SeriesName string
	Horizontal bool // bar only
	Sort       bool // stable descending sort before rendering
}

// Spec is the data a handle was rendered from, for JSON consumers.
type Spec struct {
	Slot        string    `json:"slot"`
	ChartID     string    `json:"chart_id"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title,omitempty"`
	Labels      []string  `json:"labels"`
	Data        []float64 `json:"data"`
	Colors      []string  `json:"colors"`
	Horizontal  bool      `json:"horizontal,omitempty"`
	Placeholder bool      `json:"placeholder"`
}

// go-echarts fills defaults into the chart while rendering.
var renderMu sync.Mutex

type renderable interface {
	components.Charter
	render.Renderer
}

// Handle is one rendered chart bound to a slot.
type Handle struct {
	spec     Spec
	chart    renderable
	mu       sync.Mutex
	disposed bool
}

// Spec returns the data behind the chart.
func (h *Handle) Spec() Spec {
	return h.spec
}

// Dispose releases the chart. Rendering a disposed handle fails.
func (h *Handle) Dispose() {
	h.mu.Lock()
	h.disposed = true
	h.chart = nil
	h.mu.Unlock()
}

// Disposed reports whether the handle has been released.
func (h *Handle) Disposed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disposed
}

// RenderHTML writes a standalone HTML document for the chart.
func (h *Handle) RenderHTML(w io.Writer) error {
	h.mu.Lock()
	c := h.chart
	h.mu.Unlock()
	if c == nil {
		return fmt.Errorf("chart %s has been disposed", h.spec.ChartID)
	}

	renderMu.Lock()
	defer renderMu.Unlock()
	return c.Render(w)
}

// Renderer builds charts into a Registry.
type Renderer struct {
	registry *Registry
}

// NewRenderer creates a renderer writing into registry.
func NewRenderer(registry *Registry) *Renderer {
	return &Renderer{registry: registry}
}

// Registry returns the registry the renderer owns.
func (r *Renderer) Registry() *Registry {
	return r.registry
}

// RenderSeries replaces whatever chart is bound to slot. An empty series
// renders the neutral placeholder; a malformed one is rejected and leaves
// the slot untouched.
func (r *Renderer) RenderSeries(slot string, kind Kind, series models.ChartSeries, o Options) (*Handle, error) {
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("render %s: %w", slot, err)
	}

	placeholder := series.Empty()
	if placeholder {
		series = Placeholder()
	} else if o.Sort {
		series = SortDescending(series)
	}

	spec := Spec{
		Slot:        slot,
		ChartID:     r.registry.nextID(slot),
		Kind:        kind,
		Title:       o.Title,
		Labels:      series.Labels,
		Data:        series.Data,
		Horizontal:  o.Horizontal && kind == KindBar,
		Placeholder: placeholder,
	}

	var c renderable
	switch kind {
	case KindPie, KindDoughnut:
		spec.Colors = pieColors(len(series.Labels), placeholder)
		c = buildPie(spec, o)
	case KindBar:
		spec.Colors = []string{barColor}
		if placeholder {
			spec.Colors = []string{placeholderColor}
		}
		c = buildBar(spec, o)
	default:
		return nil, fmt.Errorf("render %s: unsupported chart kind %q", slot, kind)
	}

	h := &Handle{spec: spec, chart: c}
	r.registry.bind(slot, h)
	return h, nil
}

func pieColors(n int, placeholder bool) []string {
	if placeholder {
		return []string{placeholderColor}
	}
	colors := make([]string, n)
	for i := range colors {
		colors[i] = Palette[i%len(Palette)]
	}
	return colors
}

func initOpts(spec Spec) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		ChartID:   spec.ChartID,
		PageTitle: spec.Title,
		Width:     chartWidth,
		Height:    chartHeight,
	})
}

func buildPie(spec Spec, o Options) *charts.Pie {
	data := make([]opts.PieData, len(spec.Labels))
	for i, label := range spec.Labels {
		data[i] = opts.PieData{
			Name:      label,
			Value:     spec.Data[i],
			ItemStyle: &opts.ItemStyle{Color: spec.Colors[i%len(spec.Colors)]},
		}
	}

	radius := []string{"0%", "75%"}
	if spec.Kind == KindDoughnut {
		radius = []string{"45%", "75%"}
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		initOpts(spec),
		charts.WithTitleOpts(opts.Title{Title: spec.Title}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:      opts.Bool(!spec.Placeholder),
			Trigger:   "item",
			Formatter: "{b}: {c} ({d}%)",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show:   opts.Bool(true),
			Bottom: "0",
		}),
	)
	pie.AddSeries(seriesName(o, "類型"), data).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
			charts.WithPieChartOpts(opts.PieChart{Radius: radius}),
		)
	return pie
}

func buildBar(spec Spec, o Options) *charts.Bar {
	data := make([]opts.BarData, len(spec.Data))
	for i, v := range spec.Data {
		data[i] = opts.BarData{Value: v, ItemStyle: &opts.ItemStyle{Color: spec.Colors[0]}}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(spec),
		charts.WithTitleOpts(opts.Title{Title: spec.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(!spec.Placeholder), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)
	bar.SetXAxis(spec.Labels).AddSeries(seriesName(o, "件數"), data)
	if spec.Horizontal {
		bar.XYReversal()
	}
	return bar
}

func seriesName(o Options, fallback string) string {
	if o.SeriesName != "" {
		return o.SeriesName
	}
	return fallback
}
