package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/personafeed/internal/cache"
	"github.com/mohammad-safakhou/personafeed/internal/curation"
)

// CurateHandler serves the curation stream and the deepen lookup.
type CurateHandler struct {
	orch   *curation.Orchestrator
	logger *log.Logger
}

func NewCurateHandler(orch *curation.Orchestrator) *CurateHandler {
	return &CurateHandler{
		orch:   orch,
		logger: log.New(log.Writer(), "[SERVER] ", log.LstdFlags),
	}
}

func (h *CurateHandler) Register(g *echo.Group) {
	g.POST("/curate", h.curate)
	g.GET("/items/:item_id/deepen", h.deepen)
}

type curateRequest struct {
	Name        string `json:"name"`
	CandidateID string `json:"candidateId"`
}

// curate streams pipeline events via Server-Sent Events. Without a
// candidateId the run stops after discovery for user confirmation; with one
// it executes the whole pipeline. Pipeline failures arrive as error events
// on the stream; only a bad request is rejected before it starts.
func (h *CurateHandler) curate(c echo.Context) error {
	var req curateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	candidateID := strings.TrimSpace(req.CandidateID)

	ctx := c.Request().Context()
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	// The pipeline is the only writer; after the first failed write the
	// remaining frames are dropped and the run finishes on its own.
	var writeErr error
	emit := func(ev curation.Event) {
		if writeErr != nil {
			return
		}
		data, err := json.Marshal(ev)
		if err != nil {
			writeErr = err
			return
		}
		if _, err := resp.Write([]byte("event: " + string(ev.Type) + "\n")); err != nil {
			writeErr = err
			return
		}
		if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			writeErr = err
			return
		}
		flusher.Flush()
	}

	var err error
	if candidateID == "" {
		_, err = h.orch.RunDiscovery(ctx, name, emit)
	} else {
		err = h.orch.RunFull(ctx, name, candidateID, emit)
	}
	if err != nil {
		h.logger.Printf("curation stream for %q ended with error: %v", name, err)
	}
	if writeErr != nil {
		h.logger.Printf("client gone mid-stream for %q: %v", name, writeErr)
	}
	return nil
}

// deepen returns the digest for a previously surfaced feed item. The cached
// context lives 15 minutes; after that the client has to re-run curation.
func (h *CurateHandler) deepen(c echo.Context) error {
	itemID := strings.TrimSpace(c.Param("item_id"))
	name := strings.TrimSpace(c.QueryParam("name"))
	if itemID == "" || name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "item_id and name are required")
	}

	digest, err := h.orch.Deepen(c.Request().Context(), itemID, name)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "no cached context for this item, re-run curation")
	case errors.Is(err, cache.ErrExpired):
		return echo.NewHTTPError(http.StatusNotFound, "cached context expired, re-run curation")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, digest)
}
