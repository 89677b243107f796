package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/docfetch/internal/cache"
	"github.com/mohammad-safakhou/docfetch/internal/paginate"
	"github.com/mohammad-safakhou/docfetch/internal/token"
)

// SessionHeader carries the caller's session identity on every request.
const SessionHeader = "X-Session-ID"

// Handler serves the fetch, search and session endpoints.
type Handler struct {
	Engine *cache.Engine
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/fetch", h.fetchPage)
	g.GET("/search", h.search)
	g.POST("/sessions", h.createSession)
	g.DELETE("/sessions/:id", h.destroySession)
}

func (h *Handler) fetchPage(c echo.Context) error {
	sessionID := c.Request().Header.Get(SessionHeader)
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest,
			ErrorResponse{Error: "missing " + SessionHeader + " header", Kind: "missing_session"})
	}

	var req FetchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest,
			ErrorResponse{Error: err.Error(), Kind: "bad_request"})
	}
	if req.URL == "" && req.ContinuationToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest,
			ErrorResponse{Error: "url or continuation_token required", Kind: "bad_request"})
	}

	cacheEnabled := req.CacheEnabled == nil || *req.CacheEnabled
	extract := req.ExtractContent == nil || *req.ExtractContent
	res, err := h.Engine.GetOrFetch(c.Request().Context(), cache.Request{
		URL:               req.URL,
		SessionID:         sessionID,
		Page:              req.Page,
		PageSize:          req.PageSize,
		ContinuationToken: req.ContinuationToken,
		CacheEnabled:      cacheEnabled,
		MaxTimeout:        time.Duration(req.MaxTimeoutMS) * time.Millisecond,
		RawHTML:           !extract,
	})
	if err != nil {
		return mapEngineError(err)
	}
	if res.FromCache {
		cacheHits.Inc()
	} else {
		cacheMisses.Inc()
	}

	// Raw markup path: nothing was extracted, so there is no page.
	if res.Page.Number == 0 {
		return c.JSON(http.StatusOK, FetchResponse{URL: res.URL, Title: res.Title, HTML: res.ContentHTML})
	}

	if req.ReturnFormat == "content_only" {
		return c.String(http.StatusOK, res.Content)
	}

	out := FetchResponse{
		URL:             res.URL,
		Title:           res.Title,
		Content:         res.Content,
		EstimatedTokens: res.EstimatedTokens,
		WasTruncated:    res.WasTruncated,
		FromCache:       res.FromCache,
		Pagination: Pagination{
			Page:              res.Page.Number,
			PageSize:          res.Page.PageSize,
			TotalPages:        res.Page.TotalPages,
			TotalTokens:       res.Page.TotalTokens,
			HasNext:           res.Page.HasNext,
			HasPrevious:       res.Page.HasPrevious,
			ContinuationToken: res.ContinuationToken,
			Offset:            res.Page.Offset,
			Limit:             res.Page.Limit,
		},
	}
	switch req.ReturnFormat {
	case "full_html":
		out.ContentMarkup = res.ContentHTML
	case "metadata":
		out.Content = ""
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) search(c echo.Context) error {
	sessionID := c.Request().Header.Get(SessionHeader)
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest,
			ErrorResponse{Error: "missing " + SessionHeader + " header", Kind: "missing_session"})
	}
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest,
			ErrorResponse{Error: "q required", Kind: "bad_request"})
	}
	k, _ := strconv.Atoi(c.QueryParam("k"))

	hits, err := h.Engine.Search(sessionID, query, k)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError,
			ErrorResponse{Error: err.Error(), Kind: "internal"})
	}
	if hits == nil {
		hits = []cache.SearchHit{}
	}
	return c.JSON(http.StatusOK, map[string]any{"hits": hits})
}

func (h *Handler) createSession(c echo.Context) error {
	return c.JSON(http.StatusCreated, SessionResponse{SessionID: uuid.NewString()})
}

func (h *Handler) destroySession(c echo.Context) error {
	if err := h.Engine.DestroySession(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError,
			ErrorResponse{Error: err.Error(), Kind: "internal"})
	}
	return c.NoContent(http.StatusNoContent)
}

// mapEngineError turns the engine's typed failures into distinct HTTP
// conditions so callers can tell a stale token from a corrupt one.
func mapEngineError(err error) *echo.HTTPError {
	var ue *cache.UpstreamError
	switch {
	case errors.Is(err, token.ErrSessionMismatch):
		return echo.NewHTTPError(http.StatusForbidden,
			ErrorResponse{Error: err.Error(), Kind: "token_session_mismatch"})
	case errors.Is(err, token.ErrMalformed):
		return echo.NewHTTPError(http.StatusBadRequest,
			ErrorResponse{Error: err.Error(), Kind: "token_malformed"})
	case errors.Is(err, paginate.ErrPageOutOfRange):
		return echo.NewHTTPError(http.StatusRequestedRangeNotSatisfiable,
			ErrorResponse{Error: err.Error(), Kind: "page_out_of_range"})
	case errors.As(err, &ue):
		return echo.NewHTTPError(http.StatusBadGateway,
			ErrorResponse{Error: err.Error(), Kind: "upstream_fetch"})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError,
			ErrorResponse{Error: err.Error(), Kind: "internal"})
	}
}
