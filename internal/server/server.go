// Package server exposes the document-fetch engine over HTTP.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/docfetch/config"
	"github.com/mohammad-safakhou/docfetch/internal/cache"
	"github.com/mohammad-safakhou/docfetch/internal/fetch"
)

// Run wires the whole service from config and serves until the listener
// fails: fetcher, cache store, engine, optional sweep, HTTP API.
func Run(cfg *config.Config) error {
	logger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	ctx := context.Background()

	fetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	fetchFn := func(ctx context.Context, url string, opt cache.FetchOptions) (cache.Extracted, error) {
		start := time.Now()
		res, err := fetcher.Fetch(ctx, url, fetch.Options{Timeout: opt.Timeout, Raw: opt.Raw})
		fetchDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			fetchFailures.Inc()
			return cache.Extracted{}, err
		}
		return cache.Extracted{Title: res.Title, Text: res.Text, HTML: res.HTML}, nil
	}
	engine := cache.NewEngine(store, fetchFn, cfg.Cache.DefaultPageSize, nil)
	engine.OnEvict = func(string, string) { cacheEvictions.Inc() }

	if cfg.Cache.SweepSchedule != "" {
		sweeper, err := cache.NewSweeper(engine, cfg.Cache.SweepSchedule, nil)
		if err != nil {
			return err
		}
		go sweeper.Run(ctx)
	}

	e := newEcho(logger)
	(&Handler{Engine: engine}).Register(e.Group("/api"))

	logger.Printf("listening on %s", cfg.Server.Address)
	return e.Start(cfg.Server.Address)
}

func newEcho(logger *log.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		body := ErrorResponse{Error: err.Error(), Kind: "internal"}
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			switch m := he.Message.(type) {
			case ErrorResponse:
				body = m
			default:
				body.Error = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, body)
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}

func newFetcher(cfg *config.Config) (fetch.Fetcher, error) {
	switch cfg.Fetch.Mode {
	case "browser":
		return fetch.NewBrowser(cfg.Fetch.Timeout, cfg.Fetch.UserAgent)
	default:
		return fetch.NewSolverr(cfg.Fetch.SolverrURL, cfg.Fetch.Timeout, nil), nil
	}
}

func newStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	if cfg.Cache.Backend == "redis" {
		return cache.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			cfg.Cache.TTL, cfg.Cache.Capacity)
	}
	return cache.NewMemoryStore(cfg.Cache.TTL, cfg.Cache.Capacity), nil
}
