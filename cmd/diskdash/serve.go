package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"diskdash/internal/config"
	appLog "diskdash/internal/log"
	"diskdash/internal/refresh"
	"diskdash/internal/settings"
	"diskdash/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the settings and date-range HTTP API",
	Long: `Run the HTTP API until interrupted.

On first run a default config is written to --config.

Examples:
  diskdash serve
  diskdash serve --config ./config.yaml --listen 0.0.0.0:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")

		cfg, err := config.Load(configPath)
		if err != nil {
			if cfg == nil {
				return err
			}
			appLog.Warn("could not write default config, continuing with defaults", "config_path", configPath, "err", err)
		}
		if listen != "" {
			cfg.Listen = listen
		}
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "HTTP listen address (overrides config if set)")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config) error {
	extra, err := config.LoadDefaults(cfg.DefaultsPath)
	if err != nil {
		return err
	}
	defaults := settings.Merge(settings.Defaults(), extra)
	cache := settings.NewCache(newSource(cfg), defaults)

	appLog.Info("diskdash starting",
		"version", version,
		"listen", cfg.Listen,
		"timezone", cfg.Location().String(),
		"refresh", cfg.RefreshCron,
		"upstream", cfg.Upstream != nil,
	)

	// Warm the cache; a failure here is not fatal since the upstream may
	// come back before the first request.
	if _, err := cache.Get(ctx); err != nil {
		appLog.Warn("initial settings load failed", "err", err)
	}

	sched, err := refresh.New(cfg.RefreshCron, cache, cfg.Location())
	if err != nil {
		return err
	}
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sched.Stop(stopCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return web.NewServer(cfg, cache).Run(gctx)
	})
	g.Go(func() error {
		watchSettings(gctx, cache)
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	appLog.Info("diskdash exiting")
	return nil
}

// newSource picks the upstream mirror when configured, else the local file.
func newSource(cfg *config.Config) settings.Source {
	if cfg.Upstream != nil {
		client := &http.Client{Timeout: time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second}
		return settings.NewHTTPSource(cfg.Upstream.URL, cfg.Upstream.CacheDir, client)
	}
	return settings.NewFileStore(cfg.SettingsPath, version)
}

// watchSettings logs every settings change published by the cache.
func watchSettings(ctx context.Context, cache *settings.Cache) {
	updates, cancel := cache.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-updates:
			if !ok {
				return
			}
			s, err := settings.Decode(t)
			if err != nil {
				appLog.Error("published settings do not decode", err)
				continue
			}
			appLog.Info("settings updated",
				"theme", s.Theme,
				"notify_level", s.Metrics.NotifyLevel,
				"report_enabled", s.Metrics.ReportEnabled,
			)
		}
	}
}
