package maplayer

import (
	"fmt"
	"sync"

	"github.com/jengzang/scam-dashboard-go/internal/models"
	"github.com/jengzang/scam-dashboard-go/internal/spatial"
)

// CircleStyle is everything a circle can be re-styled with.
type CircleStyle struct {
	Visible      bool    `json:"visible"`
	Radius       float64 `json:"radius"`
	FillColor    string  `json:"fill_color"`
	FillOpacity  float64 `json:"fill_opacity"`
	StrokeColor  string  `json:"stroke_color"`
	StrokeWeight float64 `json:"stroke_weight"`
}

// Marker is a handle to a placed marker.
type Marker interface {
	ID() string
}

// Circle is a handle to a placed circle.
type Circle interface {
	ID() string
	SetStyle(CircleStyle)
}

// Widget is the map surface the controller draws on.
type Widget interface {
	SetView(center spatial.Point, zoom int, bounds *spatial.Bounds)
	AddMarker(name string, at spatial.Point) Marker
	AddCircle(name string, at spatial.Point) Circle
	// SetHeatmap replaces the combined overlay; nil removes it from the map.
	SetHeatmap(overlay *models.HeatmapOverlay)
	SetLegend(Legend)
}

// Scene is a Widget that records the map for the browser-side map library.
type Scene struct {
	mu      sync.Mutex
	apiKey  string
	center  spatial.Point
	zoom    int
	bounds  *spatial.Bounds
	markers []*sceneMarker
	circles []*sceneCircle
	heat    *models.HeatmapOverlay
	legend  Legend
}

// NewScene creates an empty scene for the given maps key.
func NewScene(apiKey string) *Scene {
	return &Scene{apiKey: apiKey}
}

type sceneMarker struct {
	id   string
	name string
	at   spatial.Point
}

func (m *sceneMarker) ID() string { return m.id }

type sceneCircle struct {
	scene *Scene
	id    string
	name  string
	at    spatial.Point
	style CircleStyle
}

func (c *sceneCircle) ID() string { return c.id }

func (c *sceneCircle) SetStyle(style CircleStyle) {
	c.scene.mu.Lock()
	c.style = style
	c.scene.mu.Unlock()
}

func (s *Scene) SetView(center spatial.Point, zoom int, bounds *spatial.Bounds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.center, s.zoom, s.bounds = center, zoom, bounds
}

func (s *Scene) AddMarker(name string, at spatial.Point) Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &sceneMarker{id: fmt.Sprintf("m%d", len(s.markers)+1), name: name, at: at}
	s.markers = append(s.markers, m)
	return m
}

func (s *Scene) AddCircle(name string, at spatial.Point) Circle {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &sceneCircle{scene: s, id: fmt.Sprintf("c%d", len(s.circles)+1), name: name, at: at}
	s.circles = append(s.circles, c)
	return c
}

func (s *Scene) SetHeatmap(overlay *models.HeatmapOverlay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heat = overlay
}

func (s *Scene) SetLegend(l Legend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legend = l
}

// SceneMarker is the serialized form of a marker.
type SceneMarker struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// SceneCircle is the serialized form of a circle.
type SceneCircle struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	CircleStyle
}

// SceneView is a point-in-time copy of the scene.
type SceneView struct {
	APIKey  string                 `json:"api_key"`
	Center  spatial.Point          `json:"center"`
	Zoom    int                    `json:"zoom"`
	Bounds  *spatial.Bounds        `json:"bounds,omitempty"`
	Markers []SceneMarker          `json:"markers"`
	Circles []SceneCircle          `json:"circles"`
	Heatmap *models.HeatmapOverlay `json:"heatmap"`
	Legend  Legend                 `json:"legend"`
}

// Snapshot copies the scene for serialization.
func (s *Scene) Snapshot() SceneView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := SceneView{
		APIKey:  s.apiKey,
		Center:  s.center,
		Zoom:    s.zoom,
		Bounds:  s.bounds,
		Markers: make([]SceneMarker, len(s.markers)),
		Circles: make([]SceneCircle, len(s.circles)),
		Heatmap: s.heat,
		Legend:  s.legend,
	}
	for i, m := range s.markers {
		view.Markers[i] = SceneMarker{ID: m.id, Name: m.name, Lat: m.at.Lat, Lng: m.at.Lng}
	}
	for i, c := range s.circles {
		view.Circles[i] = SceneCircle{ID: c.id, Name: c.name, Lat: c.at.Lat, Lng: c.at.Lng, CircleStyle: c.style}
	}
	return view
}
