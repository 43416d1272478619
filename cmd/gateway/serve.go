package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"clinic-gateway/internal/app"
	"clinic-gateway/internal/config"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "listen address (overrides listen_addr / LISTEN_ADDR)",
			},
		},
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if v := cmd.String("listen"); v != "" {
		cfg.ListenAddr = v
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	a.StartJanitors(ctx)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithFields(log.Fields{
		"listen":   cfg.ListenAddr,
		"upstream": cfg.Upstream.BaseURL,
	}).Info("gateway listening")
	log.WithFields(log.Fields{
		"enabled": cfg.Rate.Enabled,
		"rps":     cfg.Rate.RPS,
		"burst":   cfg.Rate.Burst,
		"jwt":     cfg.Rate.JWTSecret != "",
	}).Info("inbound rate limit")
	log.WithFields(log.Fields{
		"max":      cfg.Outbound.MaxRequests,
		"window":   cfg.Outbound.Window,
		"shared":   cfg.Outbound.Shared,
		"failures": cfg.Outbound.Breaker.FailureThreshold,
		"open_for": cfg.Outbound.Breaker.OpenTimeout,
	}).Info("outbound guard")
	log.WithFields(log.Fields{
		"persist":  cfg.Cache.Persist,
		"policies": len(cfg.Cache.Policies),
		"steps":    len(cfg.Location.Steps),
	}).Info("cache and location")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
