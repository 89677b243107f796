package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/docfetch/config"
	"github.com/mohammad-safakhou/docfetch/internal/cache"
	"github.com/mohammad-safakhou/docfetch/internal/fetch"
	"github.com/mohammad-safakhou/docfetch/internal/server"
	"github.com/mohammad-safakhou/docfetch/mcp"
)

func main() {
	var root = &cobra.Command{Use: "docfetch"}
	root.AddCommand(serveCMD(), mcpCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			return server.Run(cfg)
		},
	}
	serve.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default: ./config.json)")
	return serve
}

func mcpCMD() *cobra.Command {
	var cfgPath string
	var cmd = &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, cleanup, err := buildEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			return mcp.NewServer(engine).Run(ctx, os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default: ./config.json)")
	return cmd
}

// buildEngine wires fetcher, store and engine for the MCP boundary.
// Logs go to stderr; stdout is the JSON-RPC channel.
func buildEngine(ctx context.Context, cfg *config.Config) (*cache.Engine, func(), error) {
	logger := log.New(os.Stderr, "[DOCFETCH] ", log.LstdFlags)

	var fetcher fetch.Fetcher
	var err error
	switch cfg.Fetch.Mode {
	case "browser":
		fetcher, err = fetch.NewBrowser(cfg.Fetch.Timeout, cfg.Fetch.UserAgent)
	default:
		fetcher = fetch.NewSolverr(cfg.Fetch.SolverrURL, cfg.Fetch.Timeout,
			log.New(os.Stderr, "[FETCH] ", log.LstdFlags))
	}
	if err != nil {
		return nil, nil, err
	}

	var store cache.Store
	if cfg.Cache.Backend == "redis" {
		store, err = cache.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			cfg.Cache.TTL, cfg.Cache.Capacity)
		if err != nil {
			fetcher.Close()
			return nil, nil, err
		}
	} else {
		store = cache.NewMemoryStore(cfg.Cache.TTL, cfg.Cache.Capacity)
	}

	fetchFn := func(ctx context.Context, url string, opt cache.FetchOptions) (cache.Extracted, error) {
		start := time.Now()
		res, err := fetcher.Fetch(ctx, url, fetch.Options{Timeout: opt.Timeout, Raw: opt.Raw})
		if err != nil {
			return cache.Extracted{}, err
		}
		logger.Printf("fetched %s in %s (%d chars)", url, time.Since(start).Round(time.Millisecond), len(res.Text))
		return cache.Extracted{Title: res.Title, Text: res.Text, HTML: res.HTML}, nil
	}
	engine := cache.NewEngine(store, fetchFn, cfg.Cache.DefaultPageSize,
		log.New(os.Stderr, "[CACHE] ", log.LstdFlags))

	if cfg.Cache.SweepSchedule != "" {
		sweeper, err := cache.NewSweeper(engine, cfg.Cache.SweepSchedule,
			log.New(os.Stderr, "[SWEEP] ", log.LstdFlags))
		if err != nil {
			fetcher.Close()
			return nil, nil, err
		}
		go sweeper.Run(ctx)
	}

	return engine, func() { _ = fetcher.Close() }, nil
}
