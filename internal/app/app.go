// Package app wires configuration into the running dashboard service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/scam-dashboard-go/internal/api"
	"github.com/jengzang/scam-dashboard-go/internal/chart"
	"github.com/jengzang/scam-dashboard-go/internal/chat"
	"github.com/jengzang/scam-dashboard-go/internal/config"
	"github.com/jengzang/scam-dashboard-go/internal/dashboard"
	"github.com/jengzang/scam-dashboard-go/internal/fetcher"
	"github.com/jengzang/scam-dashboard-go/internal/handler"
	"github.com/jengzang/scam-dashboard-go/internal/kpi"
	"github.com/jengzang/scam-dashboard-go/internal/maplayer"
	"github.com/jengzang/scam-dashboard-go/internal/middleware"
	"github.com/jengzang/scam-dashboard-go/internal/session"
	"github.com/jengzang/scam-dashboard-go/internal/spatial"
)

const shutdownTimeout = 10 * time.Second

// App is the assembled service.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	Dashboard *dashboard.Dashboard
	Sessions  *session.Manager
	Limiter   *middleware.RateLimiter
	Router    *gin.Engine
}

// New assembles every component from cfg.
func New(cfg *config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := fetcher.NewClient(cfg.BaseURL(), cfg.FetchTimeout, logger.Named("fetcher"))

	dash := dashboard.New(dashboard.Params{
		Enabled: cfg.Dashboard.Enabled,
		Client:  client,
		Aggregator: kpi.NewAggregator(client, kpi.Config{
			CityFraudURL:   cfg.Dashboard.CityFraudURL,
			TargetCityID:   cfg.Dashboard.TargetCityID,
			TargetCityName: cfg.Dashboard.TargetCityName,
		}, logger.Named("kpi")),
		Renderer: chart.NewRenderer(chart.NewRegistry()),
		Slots:    dashboard.DefaultSlots(),
		NewMap:   MapFactory(cfg, client, logger.Named("map")),
		Timeout:  cfg.Dashboard.BootTimeout,
		Logger:   logger.Named("dashboard"),
	})

	sessions := session.NewManager(cfg.Session.Secret, cfg.Session.TTL, logger.Named("session"))
	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow)
	h := handler.NewDashboardHandler(dash, sessions,
		chat.NewRelay(client, logger.Named("chat")),
		chat.NewAnalyzer(client, logger.Named("analyze")),
		logger)

	gin.SetMode(gin.ReleaseMode)
	return &App{
		cfg:       cfg,
		logger:    logger,
		Dashboard: dash,
		Sessions:  sessions,
		Limiter:   limiter,
		Router:    api.SetupRouter(h, limiter, logger.Named("http")),
	}
}

// MapFactory builds a fresh map controller per boot from the map config.
func MapFactory(cfg *config.Config, client *fetcher.Client, logger *zap.Logger) dashboard.MapFactory {
	m := cfg.Map
	return func() *maplayer.Controller {
		return maplayer.NewController(
			maplayer.NewScriptLoader(client, m.APIKey, m.ScriptURL, m.ProbeKey),
			client,
			maplayer.Options{
				Container:  "map",
				Containers: m.Containers,
				Center:     spatial.Point{Lat: m.CenterLat, Lng: m.CenterLng},
				Zoom:       m.Zoom,
				Tuning:     maplayer.HeatTuning{Base: m.HeatBase, Boost: m.HeatBoost},
			},
			logger,
		)
	}
}

// Run serves HTTP and the background sweepers until ctx is done, then shuts
// the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    a.cfg.Port,
		Handler: a.Router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.Sessions.Run(gctx, a.cfg.Session.TTL/2)
		return nil
	})
	g.Go(func() error {
		a.Limiter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
