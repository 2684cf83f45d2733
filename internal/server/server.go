package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/planweave/config"
	"github.com/mohammad-safakhou/planweave/internal/agent/core"
	"github.com/mohammad-safakhou/planweave/internal/runlog"
	"github.com/mohammad-safakhou/planweave/internal/store"
	"github.com/mohammad-safakhou/planweave/internal/workflow"
	"github.com/mohammad-safakhou/planweave/tools/web_search"
)

// Run wires the agent, stores and handlers, and serves HTTP until the
// listener fails.
func Run(cfg *config.Config) error {
	e := newEcho()

	ctx := context.Background()

	llm, err := core.NewLLMProvider(cfg.LLM)
	if err != nil {
		return err
	}
	searcher, err := newSearcher(cfg.Search)
	if err != nil {
		return err
	}
	machine := core.NewMachine(cfg, llm, searcher)
	engine := workflow.NewEngine(machine, core.NewDecider(cfg, llm))

	st, err := store.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	var index *runlog.Index
	if cfg.Logs.SearchEnabled {
		path := cfg.Logs.IndexPath
		if path == "" {
			path = filepath.Join(cfg.Logs.Dir, "logs.bleve")
		}
		index, err = runlog.OpenIndex(path)
		if err != nil {
			return err
		}
	}
	logs, err := runlog.NewStore(cfg.Logs.Dir, index)
	if err != nil {
		return err
	}

	api := e.Group("/api")
	if cfg.Server.JWTSecret != "" {
		api.Use(AuthMiddleware([]byte(cfg.Server.JWTSecret)))
	}

	wh := NewWorkflowsHandler(st, engine, machine, logs)
	wh.Register(api.Group("/workflows"))
	// legacy flowchart routes stay outside the authed group
	wh.RegisterLegacy(e.Group("/api/flowchart"))
	wh.RegisterExecute(api)

	lh := &LogsHandler{Logs: logs, Index: index}
	lh.Register(api.Group("/logs"))

	log.Printf("listening on %s", cfg.Server.Address)
	return e.Start(cfg.Server.Address)
}

// newEcho builds the echo instance with the shared middleware stack. Split
// out so handler tests can mount routes on an identical server.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
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
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}

func newSearcher(cfg config.SearchConfig) (web_search.WebSearcher, error) {
	switch web_search.Provider(cfg.Provider) {
	case web_search.BraveProvider:
		return web_search.NewWebSearcher(web_search.BraveProvider, cfg.BraveAPIKey)
	default:
		return web_search.NewWebSearcher(web_search.SerperProvider, cfg.SerperAPIKey)
	}
}
