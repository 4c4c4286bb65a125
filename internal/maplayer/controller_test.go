package maplayer

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/scam-dashboard-go/internal/fetcher"
	"github.com/jengzang/scam-dashboard-go/internal/models"
	"github.com/jengzang/scam-dashboard-go/internal/spatial"
)

type fakeLoader struct {
	widget Widget
	err    error
}

func (f fakeLoader) Load(context.Context) (Widget, error) {
	return f.widget, f.err
}

var testOptions = Options{
	Container:  "map",
	Containers: []string{"map"},
	Zoom:       12,
}

func samplePoints() []models.MetricPoint {
	return []models.MetricPoint{
		{Name: "東門里", Lat: 24.80, Lng: 120.97, Investment: 80, Auction: 50, Dating: 20},
		{Name: "西門里", Lat: 24.81, Lng: 120.96, Shopping: 40},
		{Name: "南門里", Lat: math.NaN(), Lng: 120.95, Investment: 10},
		{Name: "北門里", Lat: 24.82, Lng: 120.98},
	}
}

func populated(t *testing.T) *Controller {
	t.Helper()
	c := NewController(fakeLoader{widget: NewScene("k")}, nil, testOptions, nil)
	require.NoError(t, c.Init(context.Background()))
	require.Equal(t, StatePopulated, c.State())
	return c
}

func TestPopulateSkipsInvalidPoints(t *testing.T) {
	scene := NewScene("k")
	c := NewController(fakeLoader{widget: scene}, nil, testOptions, nil)
	c.widget = scene
	c.state = StateReady

	c.Populate(samplePoints())

	assert.Equal(t, StatePopulated, c.State())
	assert.Equal(t, len(samplePoints())-1, c.MarkerCount())
	assert.Equal(t, 1, c.Skipped())
	assert.Len(t, scene.Snapshot().Markers, 3)

	c.Populate(samplePoints())
	assert.Equal(t, 3, c.MarkerCount(), "populate runs once")
}

func newBackend(t *testing.T, points string) *fetcher.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/village_scam_data", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(points))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fetcher.NewClient(srv.URL, 0, nil)
}

const villageJSON = `[
	{"name":"東門里","location":{"lat":24.80,"lng":120.97},"investment":80,"shopping":0,"auction":50,"dating":20,"marriage":0},
	{"name":"西門里","location":{"lat":24.81,"lng":120.96},"investment":0,"shopping":40,"auction":0,"dating":0,"marriage":0},
	{"name":"南門里","location":{"lat":null,"lng":120.95},"investment":10},
	{"name":"北門里","location":{"lat":24.82,"lng":120.98}}
]`

func TestInitFetchesPoints(t *testing.T) {
	c := NewController(fakeLoader{widget: NewScene("k")}, newBackend(t, villageJSON), testOptions, nil)
	require.NoError(t, c.Init(context.Background()))

	assert.Equal(t, StatePopulated, c.State())
	assert.Equal(t, 3, c.MarkerCount())
	assert.Equal(t, 1, c.Skipped())

	view := c.View()
	require.NotNil(t, view.Scene)
	assert.InDelta(t, 24.81, view.Scene.Center.Lat, 1e-3)
	assert.Equal(t, 12, view.Scene.Zoom)
	require.NotNil(t, view.Scene.Bounds)
}

func TestDefaultLayersShowFirstMetric(t *testing.T) {
	c := NewController(fakeLoader{widget: NewScene("k")}, newBackend(t, villageJSON), testOptions, nil)
	require.NoError(t, c.Init(context.Background()))

	view := c.View()
	assert.Equal(t, Toggles{Circles: true, Metrics: []models.Metric{models.MetricInvestment}}, view.Toggles)

	circles := view.Scene.Circles
	require.Len(t, circles, 3)
	assert.True(t, circles[0].Visible)
	assert.Equal(t, MetricColor(models.MetricInvestment), circles[0].FillColor)
	assert.Equal(t, RadiusForValue(80), circles[0].Radius)
	assert.False(t, circles[1].Visible, "zero investment value hides the circle")
	assert.False(t, circles[2].Visible)

	require.NotNil(t, view.Scene.Heatmap)
	assert.Equal(t, 1, view.Scene.Heatmap.Count)
	assert.InDelta(t, 48.0, view.Scene.Heatmap.Points[0].Weight, 1e-9)
}

func TestCirclesCreatedLazilyAndReused(t *testing.T) {
	scene := NewScene("k")
	c := NewController(fakeLoader{widget: scene}, newBackend(t, villageJSON), testOptions, nil)
	require.NoError(t, c.SetToggles(Toggles{Circles: false, Metrics: []models.Metric{models.MetricShopping}}))
	require.NoError(t, c.Init(context.Background()))

	assert.Empty(t, scene.Snapshot().Circles, "no circles before the layer is first enabled")

	c.SetCircles(true)
	first := scene.Snapshot().Circles
	require.Len(t, first, 3)
	assert.True(t, first[1].Visible)

	c.SetCircles(false)
	c.SetCircles(true)
	again := scene.Snapshot().Circles
	require.Len(t, again, 3, "circles are re-styled, never recreated")
	assert.Equal(t, first[1].ID, again[1].ID)

	c.SetCircles(false)
	for _, circle := range scene.Snapshot().Circles {
		assert.False(t, circle.Visible)
	}
}

func TestHeatOverlayCombination(t *testing.T) {
	scene := NewScene("k")
	c := NewController(fakeLoader{widget: scene}, newBackend(t, villageJSON), testOptions, nil)
	require.NoError(t, c.Init(context.Background()))

	require.NoError(t, c.SetToggles(Toggles{Circles: true, Metrics: []models.Metric{models.MetricAuction, models.MetricInvestment}}))
	view := c.View()
	heat := view.Scene.Heatmap
	require.NotNil(t, heat)
	// 東門里 contributes investment 80 and auction 50, nobody else has either.
	require.Equal(t, 2, heat.Count)
	assert.Equal(t, []models.Metric{models.MetricInvestment, models.MetricAuction}, heat.Metrics)
	assert.InDelta(t, 0.8*60*1.4, heat.Points[0].Weight, 1e-9)
	assert.InDelta(t, 42.0, heat.Points[1].Weight, 1e-9)
	assert.Equal(t, RampColor(80), view.Scene.Circles[0].FillColor)
	assert.Equal(t, HeatGradient, view.Scene.Legend.Gradient)

	require.NoError(t, c.SetToggles(Toggles{Circles: true, Metrics: []models.Metric{models.MetricMarriage}}))
	assert.Nil(t, c.View().Scene.Heatmap, "no contributing point removes the overlay")

	require.NoError(t, c.SetToggles(Toggles{Circles: true}))
	assert.Nil(t, c.View().Scene.Heatmap, "no metric selected removes the overlay")

	require.NoError(t, c.SetMetric(models.MetricShopping, true))
	assert.NotNil(t, c.View().Scene.Heatmap)
}

func TestSetTogglesRejectsUnknownMetric(t *testing.T) {
	c := populated(t)
	assert.Error(t, c.SetToggles(Toggles{Metrics: []models.Metric{"lottery"}}))
	assert.Error(t, c.SetMetric("lottery", true))
	assert.Equal(t, []models.Metric{models.MetricInvestment}, c.Toggles().Metrics)
}

func TestTogglesDuringPointFetch(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/api/village_scam_data", func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(villageJSON))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewController(fakeLoader{widget: NewScene("k")}, fetcher.NewClient(srv.URL, 0, nil), testOptions, nil)

	done := make(chan error, 1)
	go func() { done <- c.Init(context.Background()) }()

	require.Eventually(t, func() bool { return c.State() == StateReady }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.SetToggles(Toggles{Circles: true, Metrics: []models.Metric{models.MetricShopping}}))
	close(release)
	require.NoError(t, <-done)

	view := c.View()
	assert.Equal(t, []models.Metric{models.MetricShopping}, view.Toggles.Metrics)
	require.NotNil(t, view.Scene.Heatmap)
	assert.Equal(t, "西門里", view.Scene.Heatmap.Points[0].Name)
}

func TestInitFailures(t *testing.T) {
	t.Run("missing container", func(t *testing.T) {
		c := NewController(fakeLoader{widget: NewScene("k")}, nil, Options{Container: "map"}, nil)
		err := c.Init(context.Background())

		var le *LoadError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, ErrMissingContainer, le.Kind)
		assert.Equal(t, StateFailed, c.State())
		assert.Equal(t, FailureMessage, c.View().Message)
		assert.Nil(t, c.View().Scene)
	})

	t.Run("missing key", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/maps_key", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"key":""}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()
		client := fetcher.NewClient(srv.URL, 0, nil)

		c := NewController(NewScriptLoader(client, "", "", false), client, testOptions, nil)
		err := c.Init(context.Background())

		var le *LoadError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, ErrMissingKey, le.Kind)
		assert.Equal(t, StateFailed, c.State())
	})

	t.Run("script load", func(t *testing.T) {
		script := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "abc", r.URL.Query().Get("key"))
			w.WriteHeader(http.StatusForbidden)
		}))
		defer script.Close()

		c := NewController(NewScriptLoader(nil, "abc", script.URL, true), nil, testOptions, nil)
		err := c.Init(context.Background())

		var le *LoadError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, ErrScriptLoad, le.Kind)
	})

	t.Run("failed is terminal", func(t *testing.T) {
		c := NewController(fakeLoader{err: errors.New("boom")}, nil, testOptions, nil)
		first := c.Init(context.Background())
		require.Error(t, first)
		assert.Equal(t, first, c.Init(context.Background()))
		c.Populate(samplePoints())
		assert.Equal(t, StateFailed, c.State())
		assert.Zero(t, c.MarkerCount())
	})
}

func TestScriptLoaderSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/maps_key", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"key":"xyz"}`))
	})
	mux.HandleFunc("/maps/api/js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`/* maps */`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	w, err := NewScriptLoader(fetcher.NewClient(srv.URL, 0, nil), "", srv.URL+"/maps/api/js", true).Load(context.Background())
	require.NoError(t, err)
	scene, ok := w.(*Scene)
	require.True(t, ok)
	assert.Equal(t, "xyz", scene.Snapshot().APIKey)
}

func TestDetail(t *testing.T) {
	c := NewController(fakeLoader{widget: NewScene("k")}, newBackend(t, villageJSON), testOptions, nil)
	require.NoError(t, c.Init(context.Background()))

	d, ok := c.Detail("東門里")
	require.True(t, ok)
	assert.InDelta(t, 43.0, d.Score, 1e-9)
	assert.Equal(t, 50.0, d.Values[models.MetricAuction])

	_, ok = c.Detail("南門里")
	assert.False(t, ok, "skipped points have no marker")
}

func TestDuplicateNamesGetDistinctMarkers(t *testing.T) {
	c := NewController(fakeLoader{widget: NewScene("k")}, newBackend(t, `[
		{"name":"光明里","lat":24.80,"lng":120.97,"investment":5},
		{"name":"光明里","lat":24.70,"lng":120.90,"investment":7}
	]`), testOptions, nil)
	require.NoError(t, c.Init(context.Background()))

	assert.Equal(t, 2, c.MarkerCount())
	_, ok := c.Detail("光明里#2")
	assert.True(t, ok)
}

func TestSuffixedNameDoesNotCollide(t *testing.T) {
	c := NewController(fakeLoader{widget: NewScene("k")}, newBackend(t, `[
		{"name":"光明里#3","lat":24.80,"lng":120.97,"investment":1},
		{"name":"光明里","lat":24.70,"lng":120.90,"investment":2},
		{"name":"光明里","lat":24.60,"lng":120.80,"investment":3}
	]`), testOptions, nil)
	require.NoError(t, c.Init(context.Background()))

	require.Equal(t, 3, c.MarkerCount())
	assert.Len(t, c.View().Scene.Markers, 3)

	for key, investment := range map[string]float64{"光明里#3": 1, "光明里": 2, "光明里#4": 3} {
		d, ok := c.Detail(key)
		require.True(t, ok, key)
		assert.Equal(t, investment, d.Values[models.MetricInvestment], key)
	}
}

func TestZeroZoomFitsMarkers(t *testing.T) {
	opts := testOptions
	opts.Zoom = 0
	c := NewController(fakeLoader{widget: NewScene("k")}, newBackend(t, villageJSON), opts, nil)
	require.NoError(t, c.Init(context.Background()))

	view := c.View()
	require.NotNil(t, view.Scene.Bounds)
	assert.Equal(t, spatial.FitZoom(*view.Scene.Bounds), view.Scene.Zoom)
	assert.NotZero(t, view.Scene.Zoom)

	empty := NewController(fakeLoader{widget: NewScene("k")}, nil, opts, nil)
	require.NoError(t, empty.Init(context.Background()))
	assert.Equal(t, 12, empty.View().Scene.Zoom, "no markers falls back to the city zoom")
}
