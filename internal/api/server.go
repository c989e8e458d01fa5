// Package api is the HTTP and websocket transport for the presentation layer.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/api/handlers"
	apimw "github.com/mediashelf/mediashelf/internal/api/middleware"
	"github.com/mediashelf/mediashelf/internal/app"
	"github.com/mediashelf/mediashelf/internal/config"
	"github.com/mediashelf/mediashelf/internal/scheduler"
	"github.com/mediashelf/mediashelf/internal/websocket"
)

const (
	apiPrefix     = "/api/v1"
	artworkPrefix = apiPrefix + "/artwork"
)

// Server handles HTTP requests for the mediashelf API.
type Server struct {
	echo      *echo.Echo
	app       *app.App
	hub       *websocket.Hub
	scheduler *scheduler.Scheduler
	cfg       *config.Config
	logger    zerolog.Logger
	started   time.Time
}

// NewServer creates the API server. hub and sched may be nil.
func NewServer(application *app.App, hub *websocket.Hub, sched *scheduler.Scheduler, cfg *config.Config, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		app:       application,
		hub:       hub,
		scheduler: sched,
		cfg:       cfg,
		logger:    logger.With().Str("component", "api").Logger(),
		started:   time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.SecurityHeaders(apiPrefix, artworkPrefix))
	s.echo.Use(middleware.BodyLimit("1M"))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("Request error")
				return nil
			}
			s.logger.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request")
			return nil
		},
	}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group(apiPrefix)
	api.GET("/status", s.getStatus)

	api.GET("/view", s.getView)
	api.POST("/view/navigate", s.navigate)
	api.POST("/view/status", s.setStatus)
	api.POST("/view/search-term", s.setSearchTerm)
	api.POST("/view/sort", s.setSort)

	api.GET("/items", s.listItems)
	api.POST("/items", s.saveItem)
	api.POST("/items/delete", s.deleteItems)
	api.POST("/items/move", s.moveItems)
	api.POST("/items/:id/recategorize", s.recategorize)
	api.GET("/counts", s.getCounts)
	api.GET("/statuses", s.getStatuses)

	api.POST("/search", s.startSearch)
	api.GET("/search/results", s.getSearchResults)
	api.POST("/search/results/:index/toggle", s.toggleResult)
	api.POST("/search/promote", s.promote)

	api.GET("/settings", s.getSettings)
	api.PUT("/settings", s.updateSettings)

	api.POST("/maintenance/artwork-prune", s.pruneArtwork)
	api.GET("/artwork/:name", s.serveArtwork)

	if s.scheduler != nil {
		handlers.NewSchedulerHandler(s.scheduler).RegisterRoutes(api.Group("/scheduler"))
	}
	if s.hub != nil {
		api.GET("/ws", s.hub.HandleWebSocket)
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("Starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(c echo.Context) error {
	clients := 0
	if s.hub != nil {
		clients = s.hub.ClientCount()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"version":   config.Version,
		"startTime": s.started.Format(time.RFC3339),
		"clients":   clients,
	})
}
