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
	"fmt"
	"log"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jinterlante1206/AleutianStrand/cmd/strand/config"
	"github.com/jinterlante1206/AleutianStrand/pkg/logging"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var (
	cfg        config.Config
	configPath string

	rootCmd = &cobra.Command{
		Use:   "strand",
		Short: "Bounded-context iterative reasoning over a local LLM",
		Long: `Strand runs long reasoning tasks as a sequence of fixed-size
chunks, carrying only a bounded, relevance-scored context window
between them so cost stays linear in solution length.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath == "" {
				path, created, err := config.CreateDefaultIfMissing()
				if err != nil {
					log.Fatalf("Error creating default configuration: %v", err)
				}
				if created {
					fmt.Printf("First run detected, creating the config at %s\n", path)
				}
			}
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				log.Fatalf("Error loading configuration: %v", err)
			}
			initLogging()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the strand version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("strand", Version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default "+config.DefaultPath+")")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reasonCmd)
}

func initLogging() {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "strand",
		JSON:    cfg.Logging.JSON,
		Pretty:  cfg.Logging.Pretty,
	})
	slog.SetDefault(logger.Slog())
}
