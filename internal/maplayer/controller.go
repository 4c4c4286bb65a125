// Package maplayer owns the village risk map: markers, lazily created
// circles, the combined heat overlay and the legend. Every viewer gets its
// own Controller.
package maplayer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jengzang/scam-dashboard-go/internal/fetcher"
	"github.com/jengzang/scam-dashboard-go/internal/models"
	"github.com/jengzang/scam-dashboard-go/internal/source"
	"github.com/jengzang/scam-dashboard-go/internal/spatial"
	"github.com/jengzang/scam-dashboard-go/internal/stats"
)

// State is the controller lifecycle.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateReady         State = "ready"
	StatePopulated     State = "populated"
	StateFailed        State = "failed"
)

// FailureMessage replaces the map area when initialization fails.
const FailureMessage = "無法載入 Google Maps，請檢查 API Key。"

const (
	heatRadius   = 30
	circleStroke = "#222"
)

// Options configures a controller.
type Options struct {
	Container  string   // slot the map renders into
	Containers []string // slots present on the page
	Center     spatial.Point
	Zoom       int
	Tuning     HeatTuning
}

// Toggles is the user-controlled part of the layer state.
type Toggles struct {
	Circles bool            `json:"circles"`
	Metrics []models.Metric `json:"metrics"`
}

// Controller drives one map through Uninitialized → Ready → Populated, or
// into the terminal Failed state.
type Controller struct {
	loader Loader
	client *fetcher.Client
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	started bool
	state   State
	failure error
	widget  Widget
	points  []models.MetricPoint
	keys    []string
	skipped int

	markersByName  map[string]Marker
	circlesByName  map[string]Circle
	circlesEnabled bool
	selected       map[models.Metric]bool
}

// NewController creates a controller. By default circles are shown for the
// first metric, like the original layer panel.
func NewController(loader Loader, client *fetcher.Client, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Tuning == (HeatTuning{}) {
		opts.Tuning = DefaultHeatTuning
	}
	return &Controller{
		loader:         loader,
		client:         client,
		opts:           opts,
		logger:         logger,
		state:          StateUninitialized,
		markersByName:  make(map[string]Marker),
		circlesByName:  make(map[string]Circle),
		circlesEnabled: true,
		selected:       map[models.Metric]bool{models.Metrics[0].Key: true},
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Init loads the widget and the village points. It runs once; later calls
// return the outcome of the first.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		err := c.failure
		c.mu.Unlock()
		return err
	}
	c.started = true
	c.mu.Unlock()

	if !c.hasContainer() {
		return c.fail(&LoadError{Kind: ErrMissingContainer, Err: fmt.Errorf("no container %q on the page", c.opts.Container)})
	}

	widget, err := c.loader.Load(ctx)
	if err != nil {
		var le *LoadError
		if !errors.As(err, &le) {
			le = &LoadError{Kind: ErrScriptLoad, Err: err}
		}
		return c.fail(le)
	}

	c.mu.Lock()
	c.widget = widget
	c.state = StateReady
	c.mu.Unlock()

	var points []models.MetricPoint
	if c.client != nil {
		got := source.Decode(c.client.Get(ctx, "/api/village_scam_data", nil), source.MetricPoints)
		if !got.Available {
			c.logger.Warn("village points unavailable", zap.String("reason", got.Reason))
		}
		points = got.Value
	}

	c.Populate(points)
	return nil
}

func (c *Controller) hasContainer() bool {
	for _, name := range c.opts.Containers {
		if name == c.opts.Container {
			return true
		}
	}
	return false
}

func (c *Controller) fail(err *LoadError) error {
	c.mu.Lock()
	c.state = StateFailed
	c.failure = err
	c.mu.Unlock()
	c.logger.Error("map initialization failed", zap.String("kind", string(err.Kind)), zap.Error(err))
	return err
}

// Populate places one marker per valid point and applies the current
// toggles. Points with non-finite coordinates are skipped. It is a no-op
// unless the controller is Ready.
func (c *Controller) Populate(points []models.MetricPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return
	}

	coords := make([]spatial.Point, 0, len(points))
	for _, p := range points {
		if !p.Valid() {
			c.skipped++
			continue
		}
		c.points = append(c.points, p)
		coords = append(coords, spatial.Point{Lat: p.Lat, Lng: p.Lng})
	}
	if c.skipped > 0 {
		c.logger.Warn("skipped villages without coordinates", zap.Int("count", c.skipped))
	}

	center, zoom := c.opts.Center, c.opts.Zoom
	var bounds *spatial.Bounds
	if centroid, ok := spatial.Centroid(coords); ok {
		center = centroid
		b, _ := spatial.BoundingBox(coords)
		bounds = &b
		if zoom == 0 {
			zoom = spatial.FitZoom(b)
		}
	}
	if zoom == 0 {
		zoom = 12
	}
	c.widget.SetView(center, zoom, bounds)

	c.keys = make([]string, len(c.points))
	for i, p := range c.points {
		key := c.uniqueKey(p.Name, i+1)
		c.keys[i] = key
		c.markersByName[key] = c.widget.AddMarker(p.Name, coords[i])
	}

	c.state = StatePopulated
	c.update()
}

// uniqueKey returns name, or name#n with the smallest n starting at seq
// that no placed marker already uses.
func (c *Controller) uniqueKey(name string, seq int) string {
	key := name
	for n := seq; ; n++ {
		if _, taken := c.markersByName[key]; !taken && key != "" {
			return key
		}
		key = fmt.Sprintf("%s#%d", name, n)
	}
}

// MarkerCount returns the number of placed markers.
func (c *Controller) MarkerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.markersByName)
}

// Skipped returns how many points were dropped for bad coordinates.
func (c *Controller) Skipped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipped
}

// Toggles returns the current toggle set.
func (c *Controller) Toggles() Toggles {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Toggles{Circles: c.circlesEnabled, Metrics: c.selectedMetrics()}
}

// SetToggles replaces the toggle set and redraws. Toggles set before the map
// is populated are applied once it is.
func (c *Controller) SetToggles(t Toggles) error {
	selected := make(map[models.Metric]bool, len(t.Metrics))
	for _, m := range t.Metrics {
		if _, ok := models.ParseMetric(string(m)); !ok {
			return fmt.Errorf("unknown metric %q", m)
		}
		selected[m] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.circlesEnabled = t.Circles
	c.selected = selected
	c.update()
	return nil
}

// SetMetric toggles a single metric.
func (c *Controller) SetMetric(m models.Metric, on bool) error {
	if _, ok := models.ParseMetric(string(m)); !ok {
		return fmt.Errorf("unknown metric %q", m)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.selected[m] = true
	} else {
		delete(c.selected, m)
	}
	c.update()
	return nil
}

// SetCircles toggles the circle layer.
func (c *Controller) SetCircles(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.circlesEnabled = on
	c.update()
}

func (c *Controller) selectedMetrics() []models.Metric {
	var out []models.Metric
	for _, m := range models.Metrics {
		if c.selected[m.Key] {
			out = append(out, m.Key)
		}
	}
	return out
}

// update redraws circles, overlay and legend from the toggle set as it is
// now. Callers hold c.mu.
func (c *Controller) update() {
	if c.state != StatePopulated {
		return
	}
	selected := c.selectedMetrics()

	if c.circlesEnabled && len(c.circlesByName) == 0 {
		for i, p := range c.points {
			c.circlesByName[c.keys[i]] = c.widget.AddCircle(p.Name, spatial.Point{Lat: p.Lat, Lng: p.Lng})
		}
	}
	for i, p := range c.points {
		circle, ok := c.circlesByName[c.keys[i]]
		if !ok {
			continue
		}
		circle.SetStyle(c.circleStyle(p, selected))
	}

	overlay := c.heatOverlay(selected)
	if overlay != nil {
		c.widget.SetHeatmap(overlay)
	} else {
		c.widget.SetHeatmap(nil)
	}
	c.widget.SetLegend(buildLegend(selected, overlay != nil))
}

func (c *Controller) circleStyle(p models.MetricPoint, selected []models.Metric) CircleStyle {
	style := CircleStyle{
		StrokeColor:  circleStroke,
		StrokeWeight: 0.6,
		FillOpacity:  0.65,
	}

	var value float64
	switch len(selected) {
	case 0:
	case 1:
		value = p.Value(selected[0])
		style.FillColor = MetricColor(selected[0])
	default:
		values := make([]float64, len(selected))
		for i, m := range selected {
			values[i] = p.Value(m)
		}
		value = stats.Max(values)
		style.FillColor = RampColor(value)
	}

	style.Radius = RadiusForValue(value)
	style.Visible = c.circlesEnabled && value > 0
	return style
}

// HeatSamples builds the combined overlay samples for a toggle selection.
func HeatSamples(points []models.MetricPoint, selected []models.Metric, tuning HeatTuning) []models.HeatmapPoint {
	var samples []models.HeatmapPoint
	for _, p := range points {
		for _, m := range selected {
			v := p.Value(m)
			if v <= 0 {
				continue
			}
			samples = append(samples, models.HeatmapPoint{
				Lat:    p.Lat,
				Lng:    p.Lng,
				Weight: tuning.Weight(v, len(selected)),
				Metric: m,
				Name:   p.Name,
			})
		}
	}
	return samples
}

func (c *Controller) heatOverlay(selected []models.Metric) *models.HeatmapOverlay {
	if len(selected) == 0 {
		return nil
	}
	samples := HeatSamples(c.points, selected, c.opts.Tuning)
	if len(samples) == 0 {
		return nil
	}
	return &models.HeatmapOverlay{
		Points:   samples,
		Count:    len(samples),
		Metrics:  selected,
		Gradient: HeatGradient,
		Radius:   heatRadius,
	}
}

// PointDetail is the click-for-detail popup of one village.
type PointDetail struct {
	Name   string                    `json:"name"`
	Lat    float64                   `json:"lat"`
	Lng    float64                   `json:"lng"`
	Values map[models.Metric]float64 `json:"values"`
	Score  float64                   `json:"score"`
}

// Detail returns the popup for a marker key.
func (c *Controller) Detail(name string) (PointDetail, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.points {
		if c.keys[i] != name {
			continue
		}
		values := make(map[models.Metric]float64, len(models.Metrics))
		for _, m := range models.Metrics {
			values[m.Key] = p.Value(m.Key)
		}
		return PointDetail{Name: p.Name, Lat: p.Lat, Lng: p.Lng, Values: values, Score: Score(p)}, true
	}
	return PointDetail{}, false
}

// View is what the browser needs to draw the map area.
type View struct {
	State   State      `json:"state"`
	Message string     `json:"message,omitempty"`
	Error   string     `json:"error,omitempty"`
	Toggles Toggles    `json:"toggles"`
	Skipped int        `json:"skipped"`
	Scene   *SceneView `json:"scene,omitempty"`
}

// View snapshots the controller. A failed map carries only the inline
// error message.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		State:   c.state,
		Toggles: Toggles{Circles: c.circlesEnabled, Metrics: c.selectedMetrics()},
		Skipped: c.skipped,
	}
	if c.state == StateFailed {
		v.Message = FailureMessage
		if c.failure != nil {
			v.Error = c.failure.Error()
		}
		return v
	}
	if scene, ok := c.widget.(*Scene); ok {
		snap := scene.Snapshot()
		v.Scene = &snap
	}
	return v
}
