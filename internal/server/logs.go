package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/planweave/internal/runlog"
)

// LogsHandler serves the execution log listing and search endpoints.
type LogsHandler struct {
	Logs  *runlog.Store
	Index *runlog.Index
}

// Register mounts the log routes on a group.
func (h *LogsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/search", h.search)
}

func (h *LogsHandler) list(c echo.Context) error {
	entries, err := h.Logs.List(c.QueryParam("workflow"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []runlog.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *LogsHandler) search(c echo.Context) error {
	if h.Index == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "log search is not enabled")
	}
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	hits, err := h.Index.Search(query, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, hits)
}
