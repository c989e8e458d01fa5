package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mediashelf/mediashelf/internal/app"
	"github.com/mediashelf/mediashelf/internal/catalog"
	"github.com/mediashelf/mediashelf/internal/ingest"
	"github.com/mediashelf/mediashelf/internal/metadata"
	"github.com/mediashelf/mediashelf/internal/preferences"
)

var artworkName = regexp.MustCompile(`^[0-9a-f]{16}\.[a-z0-9]{1,5}$`)

type navigateRequest struct {
	Category catalog.Category `json:"category"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type termRequest struct {
	Term string `json:"term"`
}

type sortRequest struct {
	Field catalog.SortKey `json:"field"`
	Dir   catalog.SortDir `json:"dir"`
}

type idsRequest struct {
	IDs    []int64 `json:"ids"`
	Status string  `json:"status"`
}

type categoryRequest struct {
	Category catalog.Category `json:"category"`
}

type searchRequest struct {
	Query string `json:"query"`
	Year  *int   `json:"year"`
}

type promoteRequest struct {
	Indices []int `json:"indices"`
}

// errorResponse writes a user-facing error with a status derived from err.
func (s *Server) errorResponse(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("Request failed")
	}
	return c.JSON(status, map[string]string{"error": app.UserMessage(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrCategoryImmutable),
		errors.Is(err, preferences.ErrQualityInUse),
		errors.Is(err, ingest.ErrStaleSession):
		return http.StatusConflict
	case errors.Is(err, ingest.ErrConfig), errors.Is(err, metadata.ErrNotConfigured):
		return http.StatusPreconditionFailed
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, catalog.ErrInvalidItem),
		errors.Is(err, ingest.ErrEmptyQuery),
		errors.Is(err, ingest.ErrUnknownCategory),
		errors.Is(err, ingest.ErrNoResults),
		errors.Is(err, ingest.ErrNothingSelected):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

// listing responds with the current view's rows.
func (s *Server) listing(c echo.Context) error {
	listing, err := s.app.Items(c.Request().Context())
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, listing)
}

// GET /api/v1/view
func (s *Server) getView(c echo.Context) error {
	view, err := s.app.CurrentView(c.Request().Context())
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// POST /api/v1/view/navigate
func (s *Server) navigate(c echo.Context) error {
	var req navigateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := s.app.Navigate(c.Request().Context(), req.Category); err != nil {
		return s.errorResponse(c, err)
	}
	return s.listing(c)
}

// POST /api/v1/view/status
func (s *Server) setStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := s.app.SetStatus(c.Request().Context(), req.Status); err != nil {
		return s.errorResponse(c, err)
	}
	return s.listing(c)
}

// POST /api/v1/view/search-term
func (s *Server) setSearchTerm(c echo.Context) error {
	var req termRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := s.app.SetTerm(c.Request().Context(), req.Term); err != nil {
		return s.errorResponse(c, err)
	}
	return s.listing(c)
}

// POST /api/v1/view/sort
func (s *Server) setSort(c echo.Context) error {
	var req sortRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := s.app.SetSort(c.Request().Context(), req.Field, req.Dir); err != nil {
		return s.errorResponse(c, err)
	}
	return s.listing(c)
}

// GET /api/v1/items
func (s *Server) listItems(c echo.Context) error {
	return s.listing(c)
}

// POST /api/v1/items
func (s *Server) saveItem(c echo.Context) error {
	var req app.ItemInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	id, err := s.app.SaveItem(c.Request().Context(), req)
	if err != nil {
		return s.errorResponse(c, err)
	}
	status := http.StatusOK
	if req.ID == 0 {
		status = http.StatusCreated
	}
	return c.JSON(status, map[string]int64{"id": id})
}

// POST /api/v1/items/delete
func (s *Server) deleteItems(c echo.Context) error {
	var req idsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := s.app.DeleteItems(c.Request().Context(), req.IDs); err != nil {
		return s.errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// POST /api/v1/items/move
func (s *Server) moveItems(c echo.Context) error {
	var req idsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := s.app.MoveItems(c.Request().Context(), req.IDs, req.Status); err != nil {
		return s.errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// POST /api/v1/items/:id/recategorize
func (s *Server) recategorize(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid id")
	}
	var req categoryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	newID, err := s.app.Recategorize(c.Request().Context(), id, req.Category)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"id": newID})
}

// GET /api/v1/counts
func (s *Server) getCounts(c echo.Context) error {
	counts, err := s.app.Counts(c.Request().Context())
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, counts)
}

// GET /api/v1/statuses
func (s *Server) getStatuses(c echo.Context) error {
	return c.JSON(http.StatusOK, s.app.Statuses())
}

// POST /api/v1/search
func (s *Server) startSearch(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := s.app.Search(c.Request().Context(), req.Query, req.Year); err != nil {
		return s.errorResponse(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// GET /api/v1/search/results
func (s *Server) getSearchResults(c echo.Context) error {
	view, err := s.app.SearchView(c.Request().Context())
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// POST /api/v1/search/results/:index/toggle
func (s *Server) toggleResult(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return badRequest(c, "invalid index")
	}
	view, err := s.app.ToggleResult(c.Request().Context(), index)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// POST /api/v1/search/promote
// Without indices the current selection is promoted.
func (s *Server) promote(c echo.Context) error {
	var req promoteRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := s.app.Promote(c.Request().Context(), req.Indices); err != nil {
		return s.errorResponse(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// GET /api/v1/settings
func (s *Server) getSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.app.Settings())
}

// PUT /api/v1/settings
func (s *Server) updateSettings(c echo.Context) error {
	var req app.SettingsInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	settings, err := s.app.SaveSettings(c.Request().Context(), req)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

// POST /api/v1/maintenance/artwork-prune
func (s *Server) pruneArtwork(c echo.Context) error {
	removed, err := s.app.PruneArtwork(c.Request().Context())
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"removed": removed})
}

// GET /api/v1/artwork/:name
func (s *Server) serveArtwork(c echo.Context) error {
	name := c.Param("name")
	if !artworkName.MatchString(name) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "artwork not found"})
	}
	return c.File(filepath.Join(s.app.Artwork().Dir(), name))
}
