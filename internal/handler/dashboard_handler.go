package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/scam-dashboard-go/internal/chat"
	"github.com/jengzang/scam-dashboard-go/internal/dashboard"
	"github.com/jengzang/scam-dashboard-go/internal/maplayer"
	"github.com/jengzang/scam-dashboard-go/internal/models"
	"github.com/jengzang/scam-dashboard-go/internal/session"
	"github.com/jengzang/scam-dashboard-go/pkg/response"
)

// SessionHeader carries the viewer token when Authorization is not used.
const SessionHeader = "X-Dashboard-Session"

const pageTitle = "詐騙防制儀表板"

// DashboardHandler handles HTTP requests for the dashboard
type DashboardHandler struct {
	dash     *dashboard.Dashboard
	sessions *session.Manager
	relay    *chat.Relay
	analyzer *chat.Analyzer
	logger   *zap.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dash *dashboard.Dashboard, sessions *session.Manager, relay *chat.Relay, analyzer *chat.Analyzer, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{
		dash:     dash,
		sessions: sessions,
		relay:    relay,
		analyzer: analyzer,
		logger:   logger,
	}
}

// SessionResponse is returned when a viewer boots the dashboard
type SessionResponse struct {
	Token     string          `json:"token,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	View      *dashboard.View `json:"view"`
}

// PartStatus is returned for a view part that is still loading
type PartStatus struct {
	Part    string `json:"part"`
	Pending bool   `json:"pending"`
}

// CreateSession handles POST /dashboard/sessions. It answers at once; the
// view's parts fill in as their sources respond.
func (h *DashboardHandler) CreateSession(c *gin.Context) {
	view := h.dash.Boot(c.Request.Context())
	if !view.Enabled() {
		response.Success(c, SessionResponse{View: view})
		return
	}

	s, err := h.sessions.Create(view)
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		response.InternalError(c, "Failed to create session")
		return
	}

	response.Created(c, SessionResponse{Token: s.Token, ExpiresAt: &s.ExpiresAt, View: view})
}

// GetView handles GET /dashboard/view
func (h *DashboardHandler) GetView(c *gin.Context) {
	view, ok := h.viewerView(c)
	if !ok {
		return
	}
	response.Success(c, view)
}

// GetKPIs handles GET /dashboard/kpis. With a session it returns that boot's
// KPI row; without one it aggregates afresh.
func (h *DashboardHandler) GetKPIs(c *gin.Context) {
	if !h.dash.Enabled() || h.dash.Aggregator() == nil {
		response.NotFound(c, "Dashboard is disabled")
		return
	}

	if bearerToken(c) != "" {
		view, ok := h.viewerView(c)
		if !ok {
			return
		}
		if kpis, ready := view.KPIs(); ready {
			response.Success(c, kpis)
			return
		}
		response.Accepted(c, PartStatus{Part: dashboard.PartKPIs, Pending: true})
		return
	}
	response.Success(c, h.dash.Aggregator().Aggregate(c.Request.Context()))
}

// GetCharts handles GET /dashboard/charts
func (h *DashboardHandler) GetCharts(c *gin.Context) {
	var query models.ChartQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}

	registry := h.dash.Renderer().Registry()
	if query.Fresh || registry.Len() == 0 {
		for _, slot := range h.dash.Slots() {
			if _, _, err := h.dash.RenderSlot(c.Request.Context(), slot.Name); err != nil {
				c.Error(err)
			}
		}
	}

	if query.WantsJSON() {
		response.Success(c, registry.Specs())
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := registry.RenderPage(c.Writer, pageTitle); err != nil {
		h.logger.Error("failed to render chart page", zap.Error(err))
	}
}

// GetChart handles GET /dashboard/charts/:slot
func (h *DashboardHandler) GetChart(c *gin.Context) {
	var query models.ChartQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}

	slot := c.Param("slot")
	if bearerToken(c) != "" && !query.Fresh {
		view, ok := h.viewerView(c)
		if !ok {
			return
		}
		if view.IsPending(slot) {
			response.Accepted(c, PartStatus{Part: slot, Pending: true})
			return
		}
		if _, msg, done := view.Chart(slot); done && msg != "" {
			response.BadGateway(c, "Chart source is malformed", errors.New(msg))
			return
		}
	}

	registry := h.dash.Renderer().Registry()
	if _, bound := registry.Get(slot); query.Fresh || !bound {
		_, known, err := h.dash.RenderSlot(c.Request.Context(), slot)
		if !known {
			response.NotFound(c, "Unknown chart slot")
			return
		}
		if err != nil {
			response.BadGateway(c, "Chart source is malformed", err)
			return
		}
	}

	handle, ok := registry.Get(slot)
	if !ok {
		response.NotFound(c, "Unknown chart slot")
		return
	}

	if query.WantsJSON() {
		response.Success(c, handle.Spec())
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := handle.RenderHTML(c.Writer); err != nil {
		h.logger.Error("failed to render chart", zap.String("slot", slot), zap.Error(err))
	}
}

// GetMap handles GET /dashboard/map
func (h *DashboardHandler) GetMap(c *gin.Context) {
	controller, ok := h.viewerMap(c)
	if !ok {
		return
	}
	response.Success(c, controller.View())
}

// PutToggles handles PUT /dashboard/map/toggles
func (h *DashboardHandler) PutToggles(c *gin.Context) {
	controller, ok := h.viewerMap(c)
	if !ok {
		return
	}

	var req models.ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid toggle body", err)
		return
	}

	toggles := controller.Toggles()
	if req.Circles != nil {
		toggles.Circles = *req.Circles
	}
	if req.Metrics != nil {
		toggles.Metrics = *req.Metrics
	}
	if err := controller.SetToggles(toggles); err != nil {
		response.BadRequest(c, "Invalid toggles", err)
		return
	}

	response.Success(c, controller.View())
}

// GetPointDetail handles GET /dashboard/map/points/:name
func (h *DashboardHandler) GetPointDetail(c *gin.Context) {
	controller, ok := h.viewerMap(c)
	if !ok {
		return
	}

	detail, found := controller.Detail(c.Param("name"))
	if !found {
		response.NotFound(c, "Village not found")
		return
	}
	response.Success(c, detail)
}

// ChatReply handles POST /dashboard/chat_reply
func (h *DashboardHandler) ChatReply(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid chat request", err)
		return
	}

	reply, err := h.relay.Reply(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, chat.ErrNoReply) {
			response.BadGateway(c, "No usable reply", err)
			return
		}
		response.BadGateway(c, "Chat backend unavailable", err)
		return
	}
	response.Success(c, reply)
}

// Analyze handles POST /dashboard/analyze
func (h *DashboardHandler) Analyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid analyze request", err)
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), req.Text)
	if errors.Is(err, chat.ErrEmptyText) {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, result)
}

// PresetScript handles GET /dashboard/preset_script
func (h *DashboardHandler) PresetScript(c *gin.Context) {
	response.Success(c, h.relay.Preset(c.Request.Context()))
}

// viewerView resolves the session token to the viewer's boot and writes the
// error response when it cannot.
func (h *DashboardHandler) viewerView(c *gin.Context) (*dashboard.View, bool) {
	s, ok := h.viewerSession(c)
	if !ok {
		return nil, false
	}
	if s.View == nil {
		response.NotFound(c, "View is not available")
		return nil, false
	}
	return s.View, true
}

// viewerMap resolves the session token to the viewer's map controller and
// writes the error response when it cannot.
func (h *DashboardHandler) viewerMap(c *gin.Context) (*maplayer.Controller, bool) {
	s, ok := h.viewerSession(c)
	if !ok {
		return nil, false
	}

	controller := s.Map()
	if controller == nil {
		response.NotFound(c, "Map is not available")
		return nil, false
	}
	return controller, true
}

func (h *DashboardHandler) viewerSession(c *gin.Context) (*session.Session, bool) {
	token := bearerToken(c)
	if token == "" {
		response.Unauthorized(c, "Missing session token")
		return nil, false
	}

	s, err := h.sessions.Lookup(token)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return nil, false
	}
	return s, true
}

func bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(c.GetHeader(SessionHeader))
}
