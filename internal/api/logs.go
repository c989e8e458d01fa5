package api

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/mediashelf/mediashelf/internal/logger"
)

// EnableLogs exposes the recent log entries and, when filePath is set, the
// rotating log file under /api/v1/logs.
func (s *Server) EnableLogs(stream *logger.Stream, filePath string) {
	g := s.echo.Group(apiPrefix + "/logs")
	g.GET("", func(c echo.Context) error {
		entries := stream.Recent()
		if entries == nil {
			entries = []logger.Entry{}
		}
		return c.JSON(http.StatusOK, entries)
	})
	g.GET("/download", func(c echo.Context) error {
		if filePath == "" {
			return echo.NewHTTPError(http.StatusNotFound, "no log file configured")
		}
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			return echo.NewHTTPError(http.StatusNotFound, "log file not found")
		}
		return c.Attachment(filePath, "mediashelf.log")
	})
}
