package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"contentcal/internal/api"
	"contentcal/internal/config"
	"contentcal/internal/ics"
	appLog "contentcal/internal/log"
	"contentcal/internal/web"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the calendar HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config if set)")
}

func overlaySources(cfg *config.Config) []ics.Source {
	out := make([]ics.Source, 0, len(cfg.Overlays))
	for _, o := range cfg.Overlays {
		out = append(out, ics.Source{ID: o.ID, Name: o.Name, URL: o.URL, Color: o.Color})
	}
	return out
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer appLog.Flush(2 * time.Second)

	if listenAddr != "" {
		cfg.Listen = listenAddr
	}

	appLog.Info("contentcal starting", "version", version)
	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"week_start", cfg.WeekStart,
		"refresh", cfg.RefreshCron,
		"api", cfg.API.BaseURL,
		"overlay_count", len(cfg.Overlays),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := api.New(api.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
	})
	overlay := ics.NewOverlay(ics.NewFetcher(cfg.CacheDir, nil), overlaySources(cfg), cfg.Location())
	srv := web.NewServer(web.Options{Config: cfg, Backend: client, Overlay: overlay})

	refresh := func() {
		rctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := overlay.Refresh(rctx, time.Now()); err != nil {
			appLog.Warn("overlay refresh incomplete", "err", err)
		}
		if _, err := srv.RefreshStats(rctx); err != nil {
			appLog.Warn("stats refresh failed", "err", err)
		}
		if n := srv.EvictIdle(); n > 0 {
			appLog.Info("evicted idle sessions", "count", n)
		}
	}

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.RefreshCron, refresh); err != nil {
		return err
	}
	go refresh()
	sched.Start()

	go func() {
		err := config.Watch(ctx, configPath, func(c *config.Config) {
			srv.SetConfig(c)
			overlay.SetSources(overlaySources(c))
			overlay.SetLocation(c.Location())
			appLog.SetLevel(appLog.ParseLevel(c.Log.Level))
			go refresh()
		})
		if err != nil {
			appLog.Error("config watch stopped", err)
		}
	}()

	hs := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("http server listening", "addr", cfg.Listen)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			<-sched.Stop().Done()
			return err
		}
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown failed", err)
	}
	<-sched.Stop().Done()
	appLog.Info("contentcal exiting")
	return nil
}
