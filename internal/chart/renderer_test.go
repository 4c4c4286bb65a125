package chart

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/scam-dashboard-go/internal/models"
)

func TestRenderSeriesReplacesSlot(t *testing.T) {
	r := NewRenderer(NewRegistry())

	first, err := r.RenderSeries("scam_types", KindPie, models.ChartSeries{
		Labels: []string{"假投資", "假網拍"},
		Data:   []float64{10, 5},
	}, Options{Title: "詐騙類型"})
	require.NoError(t, err)

	second, err := r.RenderSeries("scam_types", KindPie, models.ChartSeries{
		Labels: []string{"假交友"},
		Data:   []float64{3},
	}, Options{Title: "詐騙類型"})
	require.NoError(t, err)

	assert.True(t, first.Disposed())
	assert.False(t, second.Disposed())
	assert.Equal(t, 1, r.Registry().Len())

	bound, ok := r.Registry().Get("scam_types")
	require.True(t, ok)
	assert.Same(t, second, bound)

	var buf bytes.Buffer
	require.NoError(t, r.Registry().RenderPage(&buf, "dashboard"))
	page := buf.String()
	assert.Contains(t, page, second.Spec().ChartID)
	assert.NotContains(t, page, first.Spec().ChartID)

	assert.Error(t, first.RenderHTML(&bytes.Buffer{}))
}

func TestRenderSeriesPlaceholder(t *testing.T) {
	r := NewRenderer(NewRegistry())

	h, err := r.RenderSeries("victim_ages", KindBar, models.ChartSeries{}, Options{})
	require.NoError(t, err)

	spec := h.Spec()
	assert.True(t, spec.Placeholder)
	assert.Equal(t, []string{placeholderLabel}, spec.Labels)
	assert.Equal(t, []float64{1}, spec.Data)
	assert.Equal(t, []string{placeholderColor}, spec.Colors)
}

func TestRenderSeriesRejectsMalformed(t *testing.T) {
	r := NewRenderer(NewRegistry())
	prev, err := r.RenderSeries("risk_mix", KindDoughnut, models.ChartSeries{Labels: []string{"a"}, Data: []float64{1}}, Options{})
	require.NoError(t, err)

	_, err = r.RenderSeries("risk_mix", KindDoughnut, models.ChartSeries{Labels: []string{"a", "b"}, Data: []float64{1}}, Options{})
	require.Error(t, err)

	bound, _ := r.Registry().Get("risk_mix")
	assert.Same(t, prev, bound, "a rejected series leaves the slot untouched")
	assert.False(t, prev.Disposed())
}

func TestRenderSeriesUnsupportedKind(t *testing.T) {
	_, err := NewRenderer(NewRegistry()).RenderSeries("x", Kind("radar"), models.ChartSeries{}, Options{})
	assert.Error(t, err)
}

func TestRenderSeriesHorizontalSortedBar(t *testing.T) {
	r := NewRenderer(NewRegistry())
	h, err := r.RenderSeries("city_ranking", KindBar, models.ChartSeries{
		Labels: []string{"a", "b", "c", "d"},
		Data:   []float64{1, 5, 3, 5},
	}, Options{Horizontal: true, Sort: true})
	require.NoError(t, err)

	spec := h.Spec()
	assert.True(t, spec.Horizontal)
	assert.Equal(t, []string{"b", "d", "c", "a"}, spec.Labels)

	var buf bytes.Buffer
	require.NoError(t, h.RenderHTML(&buf))
	assert.True(t, strings.Contains(buf.String(), spec.ChartID))
}

func TestPieColorsCyclePalette(t *testing.T) {
	colors := pieColors(7, false)
	assert.Equal(t, Palette[0], colors[5])
	assert.Equal(t, Palette[1], colors[6])
}

func TestRegistryDispose(t *testing.T) {
	r := NewRenderer(NewRegistry())
	a, _ := r.RenderSeries("a", KindPie, models.ChartSeries{}, Options{})
	_, _ = r.RenderSeries("b", KindBar, models.ChartSeries{}, Options{})

	r.Registry().Dispose("a")
	assert.True(t, a.Disposed())
	assert.Equal(t, []string{"b"}, r.Registry().Slots())

	r.Registry().DisposeAll()
	assert.Zero(t, r.Registry().Len())
}
