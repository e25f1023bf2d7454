// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jinterlante1206/AleutianStrand/cmd/strand/config"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/archive"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/routes"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reasoning engine HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *archive.Store
	if cfg.Archive.Enabled {
		var err error
		store, err = archive.Open(archive.Config{
			Path: config.ExpandPath(cfg.Archive.Path),
		})
		if err != nil {
			return err
		}
		defer store.Close()
	}

	engine := reasoner.New(reasoner.Options{
		Archive:       store,
		SweepInterval: cfg.Engine.SweepInterval.Duration,
		MaxIdle:       cfg.Engine.MaxIdle.Duration,
	})
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	routes.SetupRoutes(router, engine)

	srv := &http.Server{
		Addr:              cfg.Service.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("strand server listening", "addr", cfg.Service.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down strand server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
