// Package server exposes the curation pipeline over HTTP: a two-phase SSE
// stream for runs and a JSON lookup for deepen digests.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/personafeed/config"
	"github.com/mohammad-safakhou/personafeed/internal/curation"
)

// New assembles the echo instance: middleware, health and metrics endpoints,
// and the curation API under /api.
func New(orch *curation.Orchestrator) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[SERVER] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	NewCurateHandler(orch).Register(e.Group("/api"))
	return e
}

// Run wires the orchestrator from its collaborators and serves until the
// listener fails.
func Run(cfg *config.Config, deps curation.Deps) error {
	orch := curation.NewOrchestrator(cfg, deps)
	e := New(orch)
	log.Printf("listening on %s", cfg.Server.Address)
	return e.Start(cfg.Server.Address)
}
