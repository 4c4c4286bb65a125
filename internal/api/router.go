package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/scam-dashboard-go/internal/handler"
	"github.com/jengzang/scam-dashboard-go/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.DashboardHandler, limiter *middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Scam dashboard service is running",
		})
	})

	// 仪表板路由组
	dash := r.Group("/dashboard")
	dash.Use(middleware.RateLimit(limiter))
	{
		dash.POST("/sessions", h.CreateSession)
		dash.GET("/view", h.GetView)
		dash.GET("/kpis", h.GetKPIs)

		// 防诈工具
		dash.POST("/analyze", h.Analyze)
		dash.GET("/preset_script", h.PresetScript)
		dash.POST("/chat_reply", h.ChatReply)

		charts := dash.Group("/charts")
		{
			charts.GET("", h.GetCharts)
			charts.GET("/:slot", h.GetChart)
		}

		// 地图图层 (每个会话一份)
		m := dash.Group("/map")
		{
			m.GET("", h.GetMap)
			m.PUT("/toggles", h.PutToggles)
			m.GET("/points/:name", h.GetPointDetail)
		}
	}

	return r
}
