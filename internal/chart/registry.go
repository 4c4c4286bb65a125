package chart

import (
	"fmt"
	"io"
	"sync"

	"github.com/go-echarts/go-echarts/v2/components"
)

// Registry maps slots to their current chart handle. Binding a slot disposes
// the handle it replaces, so a slot never holds two charts.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
	order   []string
	seq     map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[string]*Handle),
		seq:     make(map[string]int),
	}
}

func (r *Registry) nextID(slot string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq[slot]++
	return fmt.Sprintf("%s-%d", slot, r.seq[slot])
}

func (r *Registry) bind(slot string, h *Handle) {
	r.mu.Lock()
	prev, ok := r.handles[slot]
	r.handles[slot] = h
	if !ok {
		r.order = append(r.order, slot)
	}
	r.mu.Unlock()

	if prev != nil {
		prev.Dispose()
	}
}

// Get returns the handle bound to slot.
func (r *Registry) Get(slot string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[slot]
	return h, ok
}

// Dispose releases and unbinds the chart in slot.
func (r *Registry) Dispose(slot string) {
	r.mu.Lock()
	h, ok := r.handles[slot]
	if ok {
		delete(r.handles, slot)
		for i, s := range r.order {
			if s == slot {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if h != nil {
		h.Dispose()
	}
}

// DisposeAll releases every chart.
func (r *Registry) DisposeAll() {
	for _, slot := range r.Slots() {
		r.Dispose(slot)
	}
}

// Len returns the number of bound slots.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Slots returns the bound slots in first-bound order.
func (r *Registry) Slots() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Specs returns the spec of every bound chart in slot order.
func (r *Registry) Specs() []Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	specs := make([]Spec, 0, len(r.order))
	for _, slot := range r.order {
		specs = append(specs, r.handles[slot].spec)
	}
	return specs
}

// RenderPage writes every bound chart into one HTML page.
func (r *Registry) RenderPage(w io.Writer, title string) error {
	r.mu.Lock()
	page := components.NewPage()
	page.PageTitle = title
	for _, slot := range r.order {
		h := r.handles[slot]
		h.mu.Lock()
		if h.chart != nil {
			page.AddCharts(h.chart)
		}
		h.mu.Unlock()
	}
	r.mu.Unlock()

	renderMu.Lock()
	defer renderMu.Unlock()
	return page.Render(w)
}
