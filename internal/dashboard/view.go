package dashboard

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/jengzang/scam-dashboard-go/internal/chart"
	"github.com/jengzang/scam-dashboard-go/internal/maplayer"
	"github.com/jengzang/scam-dashboard-go/internal/models"
)

// Part names of a view besides its chart slots.
const (
	PartKPIs = "kpis"
	PartMap  = "map"
)

// View is the outcome of one boot. Parts fill in as their tasks finish;
// Pending lists those still loading.
type View struct {
	enabled    bool
	bootedAt   time.Time
	controller *maplayer.Controller
	done       chan struct{}

	mu          sync.RWMutex
	order       []string
	pending     map[string]struct{}
	kpis        *models.KPISnapshot
	charts      map[string]chart.Spec
	chartErrors map[string]string
}

// Snapshot is the JSON form of a view at one instant.
type Snapshot struct {
	Enabled     bool                `json:"enabled"`
	Ready       bool                `json:"ready"`
	Pending     []string            `json:"pending,omitempty"`
	KPIs        *models.KPISnapshot `json:"kpis,omitempty"`
	Charts      []chart.Spec        `json:"charts,omitempty"`
	ChartErrors map[string]string   `json:"chart_errors,omitempty"`
	Map         *maplayer.View      `json:"map,omitempty"`
	BootedAt    time.Time           `json:"booted_at"`
}

func newView(enabled bool) *View {
	return &View{
		enabled:     enabled,
		bootedAt:    time.Now(),
		done:        make(chan struct{}),
		pending:     make(map[string]struct{}),
		charts:      make(map[string]chart.Spec),
		chartErrors: make(map[string]string),
	}
}

func (v *View) expect(part string) {
	v.mu.Lock()
	v.pending[part] = struct{}{}
	v.order = append(v.order, part)
	v.mu.Unlock()
}

func (v *View) finish(part string) {
	v.mu.Lock()
	delete(v.pending, part)
	v.mu.Unlock()
}

func (v *View) setKPIs(snap models.KPISnapshot) {
	v.mu.Lock()
	v.kpis = &snap
	delete(v.pending, PartKPIs)
	v.mu.Unlock()
}

func (v *View) setChart(slot string, spec chart.Spec, err error) {
	v.mu.Lock()
	if err != nil {
		v.chartErrors[slot] = err.Error()
	} else {
		v.charts[slot] = spec
	}
	delete(v.pending, slot)
	v.mu.Unlock()
}

// Enabled reports whether the boot ran at all.
func (v *View) Enabled() bool { return v.enabled }

// Controller returns the boot's map controller, nil when the map is off.
func (v *View) Controller() *maplayer.Controller { return v.controller }

// Done is closed once every part has finished.
func (v *View) Done() <-chan struct{} { return v.done }

// Wait blocks until every part has finished or ctx ends.
func (v *View) Wait(ctx context.Context) error {
	select {
	case <-v.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsPending reports whether part is still loading.
func (v *View) IsPending(part string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.pending[part]
	return ok
}

// KPIs returns the KPI row, false while it is loading or when the boot had
// no aggregator.
func (v *View) KPIs() (models.KPISnapshot, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.kpis == nil {
		return models.KPISnapshot{}, false
	}
	return *v.kpis, true
}

// Chart returns the booted chart of slot. A non-empty message means the slot
// failed to render.
func (v *View) Chart(slot string) (spec chart.Spec, message string, ok bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if msg, failed := v.chartErrors[slot]; failed {
		return chart.Spec{}, msg, true
	}
	spec, ok = v.charts[slot]
	return spec, "", ok
}

// Snapshot copies the current state of every part.
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	snap := Snapshot{
		Enabled:  v.enabled,
		BootedAt: v.bootedAt,
	}
	if v.kpis != nil {
		k := *v.kpis
		snap.KPIs = &k
	}
	for _, part := range v.order {
		if _, waiting := v.pending[part]; waiting {
			snap.Pending = append(snap.Pending, part)
		}
		if spec, ok := v.charts[part]; ok {
			snap.Charts = append(snap.Charts, spec)
		}
	}
	if len(v.chartErrors) > 0 {
		snap.ChartErrors = make(map[string]string, len(v.chartErrors))
		for k, msg := range v.chartErrors {
			snap.ChartErrors[k] = msg
		}
	}
	v.mu.RUnlock()

	snap.Ready = len(snap.Pending) == 0
	sort.Strings(snap.Pending)
	if v.controller != nil {
		m := v.controller.View()
		snap.Map = &m
	}
	return snap
}

// MarshalJSON encodes the current snapshot.
func (v *View) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Snapshot())
}
