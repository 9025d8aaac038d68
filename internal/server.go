package fleettop

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jondoveston/fleettop/internal/store"
)

// HistoryReader is the read side of the snapshot store
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]store.MetricLog, error)
}

type ServerConfig struct {
	Fleet  *Fleet
	Poller Poller
	// History is optional, /api/history answers 503 without it
	History      HistoryReader
	HistoryLimit int
	Dashboard    Window
	Snapshot     Window
	// Gatherer is optional, /metrics is not mounted without it
	Gatherer prometheus.Gatherer
	Debug    bool
}

// Server exposes poll results and the snapshot history as JSON
type Server struct {
	e   *echo.Echo
	cfg ServerConfig
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = store.DefaultHistoryLimit
	}
	if cfg.Dashboard.Points == 0 {
		cfg.Dashboard = DashboardWindow
	}
	if cfg.Snapshot.Points == 0 {
		cfg.Snapshot = SnapshotWindow
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.INFO)
	if cfg.Debug {
		e.Logger.SetLevel(log.DEBUG)
	}
	e.Use(middleware.Recover())

	s := &Server{e: e, cfg: cfg}
	e.GET("/healthz", s.healthHandler)
	e.GET("/api/machines", s.machinesHandler)
	e.GET("/api/machines/:name", s.machineHandler)
	e.GET("/api/dashboard", s.dashboardHandler)
	e.GET("/api/snapshot", s.snapshotHandler)
	e.GET("/api/history", s.historyHandler)
	if cfg.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.e
}

// Start blocks serving on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) machinesHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, s.cfg.Fleet.Endpoints())
}

func (s *Server) machineHandler(c echo.Context) error {
	ep, ok := s.cfg.Fleet.Lookup(c.Param("name"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown machine "+c.Param("name"))
	}
	results := s.cfg.Poller.Poll(c.Request().Context(), []Endpoint{ep}, s.cfg.Dashboard)
	return c.JSON(http.StatusOK, results[ep.Name])
}

func (s *Server) dashboardHandler(c echo.Context) error {
	c.Logger().Debugf("polling %d machines for dashboard", s.cfg.Fleet.Len())
	results := s.cfg.Poller.Poll(c.Request().Context(), s.cfg.Fleet.Endpoints(), s.cfg.Dashboard)
	return c.JSON(http.StatusOK, results)
}

func (s *Server) snapshotHandler(c echo.Context) error {
	results := s.cfg.Poller.Poll(c.Request().Context(), s.cfg.Fleet.Endpoints(), s.cfg.Snapshot)
	return c.JSON(http.StatusOK, results)
}

func (s *Server) historyHandler(c echo.Context) error {
	if s.cfg.History == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "history store not configured")
	}

	limit := s.cfg.HistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	logs, err := s.cfg.History.Recent(c.Request().Context(), limit)
	if err != nil {
		c.Logger().Errorf("history query failed: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "history query failed")
	}
	return c.JSON(http.StatusOK, store.GroupByMachine(logs))
}
