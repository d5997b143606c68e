package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Root - service banner
	s.echo.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "PDF session server ready")
	})

	// Session document lifecycle
	s.echo.POST("/session/upload", s.handleUpload)
	s.echo.POST("/session/save-changes", s.handleSaveChanges)
	s.echo.GET("/session/download", s.handleDownload)
	s.echo.GET("/session/metadata", s.handleMetadata)

	// Collaboration channel
	s.echo.GET("/session/ws", s.handleWebSocket)
}
