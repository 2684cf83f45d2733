package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/planweave/internal/agent/core"
	"github.com/mohammad-safakhou/planweave/internal/runlog"
	"github.com/mohammad-safakhou/planweave/internal/store"
	"github.com/mohammad-safakhou/planweave/internal/workflow"
)

// WorkflowExecutor traverses a workflow graph.
type WorkflowExecutor interface {
	Execute(ctx context.Context, wf *workflow.Workflow, input string, rc core.RunConfig) workflow.Result
}

// GoalRunner runs one plain state-machine execution.
type GoalRunner interface {
	Run(ctx context.Context, input string, rc core.RunConfig) core.RunResult
}

// WorkflowsHandler serves the workflow registry and execution endpoints.
type WorkflowsHandler struct {
	Store  store.WorkflowStore
	Engine WorkflowExecutor
	Runner GoalRunner
	Logs   *runlog.Store
	logger *log.Logger
}

// NewWorkflowsHandler wires the handler.
func NewWorkflowsHandler(st store.WorkflowStore, engine WorkflowExecutor, runner GoalRunner, logs *runlog.Store) *WorkflowsHandler {
	return &WorkflowsHandler{
		Store:  st,
		Engine: engine,
		Runner: runner,
		Logs:   logs,
		logger: log.New(log.Writer(), "[WORKFLOWS] ", log.LstdFlags),
	}
}

// Register mounts the workflow routes on a group.
func (h *WorkflowsHandler) Register(g *echo.Group) {
	g.POST("", h.save)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id/name", h.rename)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/execute", h.execute)
	g.GET("/:id/logs/latest", h.latestLog)
}

// RegisterLegacy mounts the single-slot flowchart routes (older clients).
func (h *WorkflowsHandler) RegisterLegacy(g *echo.Group) {
	g.POST("", h.saveCurrent)
	g.GET("/current", h.getCurrent)
	g.POST("/current/execute", h.executeCurrent)
}

// RegisterExecute mounts the direct goal execution endpoint.
func (h *WorkflowsHandler) RegisterExecute(g *echo.Group) {
	g.POST("/execute", h.executePrompt)
}

func (h *WorkflowsHandler) save(c echo.Context) error {
	content, err := readWorkflowBody(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	wf, err := workflow.Parse(content)
	if err != nil {
		var verr *workflow.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, SaveResponse{Success: false, Message: verr.Message})
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if wf.ID == "" {
		wf.ID = workflow.DeriveID(wf)
	}
	if err := h.Store.Upsert(c.Request().Context(), wf); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, SaveResponse{
		Success:  true,
		Message:  fmt.Sprintf("Flowchart '%s' saved successfully", wf.Metadata.Name),
		Filename: wf.ID,
	})
}

func (h *WorkflowsHandler) list(c echo.Context) error {
	workflows, err := h.Store.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]WorkflowSummary, 0, len(workflows))
	for _, wf := range workflows {
		name := wf.Metadata.Name
		if name == "" {
			name = wf.ID
		}
		out = append(out, WorkflowSummary{
			Name:        name,
			Filename:    wf.ID,
			ID:          wf.ID,
			Description: wf.Description(),
			DefaultName: wf.ID,
			CreatedAt:   formatTime(wf.CreatedAt),
			UpdatedAt:   formatTime(wf.UpdatedAt),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *WorkflowsHandler) get(c echo.Context) error {
	wf, err := h.Store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.storeError(c.Param("id"), err)
	}
	return c.JSON(http.StatusOK, wf)
}

func (h *WorkflowsHandler) rename(c echo.Context) error {
	var req RenameRequest
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	wf, err := h.Store.Get(ctx, id)
	if err != nil {
		return h.storeError(id, err)
	}
	wf.Metadata.Name = req.Name
	if err := h.Store.Upsert(ctx, wf); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Workflow name updated successfully",
	})
}

func (h *WorkflowsHandler) delete(c echo.Context) error {
	id := c.Param("id")
	if id == "current" {
		return echo.NewHTTPError(http.StatusConflict, "the current workflow slot cannot be deleted")
	}
	if err := h.Store.Delete(c.Request().Context(), id); err != nil {
		return h.storeError(id, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Workflow '%s' deleted successfully", id),
	})
}

func (h *WorkflowsHandler) execute(c echo.Context) error {
	id := c.Param("id")
	wf, err := h.Store.Get(c.Request().Context(), id)
	if err != nil {
		return h.storeError(id, err)
	}
	return h.runWorkflow(c, wf)
}

func (h *WorkflowsHandler) latestLog(c echo.Context) error {
	wf, err := h.Store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.storeError(c.Param("id"), err)
	}
	entry, found, err := h.Logs.Latest(wf.Metadata.Name)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return c.JSON(http.StatusOK, map[string]interface{}{"found": false})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"found": true, "log": entry})
}

func (h *WorkflowsHandler) saveCurrent(c echo.Context) error {
	content, err := readWorkflowBody(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	wf, err := workflow.Parse(content)
	if err != nil {
		var verr *workflow.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, SaveResponse{Success: false, Message: verr.Message})
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if wf.ID == "" {
		wf.ID = workflow.DeriveID(wf)
	}
	if err := h.Store.SetCurrent(c.Request().Context(), wf); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, SaveResponse{
		Success:  true,
		Message:  fmt.Sprintf("Flowchart '%s' saved successfully", wf.Metadata.Name),
		Filename: wf.ID,
	})
}

func (h *WorkflowsHandler) getCurrent(c echo.Context) error {
	wf, err := h.Store.GetCurrent(c.Request().Context())
	if err != nil {
		if errors.Is(err, store.ErrNoCurrent) {
			return echo.NewHTTPError(http.StatusNotFound, "no current workflow set")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, wf)
}

func (h *WorkflowsHandler) executeCurrent(c echo.Context) error {
	wf, err := h.Store.GetCurrent(c.Request().Context())
	if err != nil {
		if errors.Is(err, store.ErrNoCurrent) {
			return echo.NewHTTPError(http.StatusNotFound, "no current workflow set")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return h.runWorkflow(c, wf)
}

func (h *WorkflowsHandler) executePrompt(c echo.Context) error {
	var req PromptInput
	if err := c.Bind(&req); err != nil || req.Input == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "input required")
	}
	res := h.Runner.Run(c.Request().Context(), req.Input, core.RunConfig{})
	if res.Error != "" {
		return c.JSON(http.StatusInternalServerError, res)
	}
	return c.JSON(http.StatusOK, res)
}

// runWorkflow executes a workflow, records a log entry, and maps any run
// error to a non-2xx status while keeping the partial result in the body.
func (h *WorkflowsHandler) runWorkflow(c echo.Context, wf *workflow.Workflow) error {
	var req ExecuteRequest
	if err := c.Bind(&req); err != nil || req.Input == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "input required")
	}
	rc := core.RunConfig{}
	if req.Config != nil {
		rc = *req.Config
	}

	start := time.Now()
	res := h.Engine.Execute(c.Request().Context(), wf, req.Input, rc)
	end := time.Now()

	if h.Logs != nil {
		if _, err := h.Logs.Record(wf.Metadata.Name, start, end, res.FinalResult, res.Error == "", res.Error); err != nil {
			h.logger.Printf("record log for %s: %v", wf.ID, err)
		}
	}

	if res.Error != "" {
		return c.JSON(http.StatusInternalServerError, res)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *WorkflowsHandler) storeError(id string, err error) error {
	if errors.Is(err, store.ErrWorkflowNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Workflow '%s' not found", id))
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// readWorkflowBody accepts either a raw body or a multipart "file" field.
func readWorkflowBody(c echo.Context) ([]byte, error) {
	if file, err := c.FormFile("file"); err == nil {
		src, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return io.ReadAll(src)
	}
	content, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, errors.New("empty request body")
	}
	return content, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
