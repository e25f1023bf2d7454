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
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jinterlante1206/AleutianStrand/services/llm"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/storm"
)

var (
	reasonChunkSize     int
	reasonCarryoverSize int
	reasonMaxIterations int
	reasonGoalSignal    string
	reasonStormLevel    string
	reasonCausalTrace   bool

	reasonCmd = &cobra.Command{
		Use:   "reason [problem]",
		Short: "Run a reasoning session against the configured LLM",
		Long: `Reason drives a complete chunked reasoning session locally:
it repeatedly asks the engine for the next prompt, samples the
configured LLM, and submits the generated chunk until the session
reaches its goal signal or the iteration cap.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReason(cmd.Context(), strings.Join(args, " "))
		},
	}
)

func init() {
	reasonCmd.Flags().IntVar(&reasonChunkSize, "chunk-size", 0, "token budget per chunk")
	reasonCmd.Flags().IntVar(&reasonCarryoverSize, "carryover-size", 0, "token budget carried between chunks")
	reasonCmd.Flags().IntVar(&reasonMaxIterations, "max-iterations", 0, "hard cap on chunks")
	reasonCmd.Flags().StringVar(&reasonGoalSignal, "goal", "", "substring that ends the session as goal-reached")
	reasonCmd.Flags().StringVar(&reasonStormLevel, "storm-level", "", "storm mitigation preset")
	reasonCmd.Flags().BoolVar(&reasonCausalTrace, "causal-trace", false, "record a causal event trace")
}

// transientRetryLimit bounds back-to-back oracle retries before the
// failure is treated as fatal for the session.
const transientRetryLimit = 3

func runReason(parent context.Context, problem string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := llm.NewClient(cfg.LLM.Backend, llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		APIKey:  cfg.LLM.APIKey,
	})
	if err != nil {
		return err
	}

	engine := reasoner.New(reasoner.Options{})
	params := sessionParams(problem)
	id, err := engine.CreateSession(params)
	if err != nil {
		return err
	}
	fmt.Printf("session %s (chunk %d, carryover %d, cap %d)\n\n",
		id, params.ChunkSize, params.CarryoverSize, params.MaxIterations)

	maxTokens := params.ChunkSize
	genParams := llm.GenerationParams{MaxTokens: &maxTokens}

	for {
		if ctx.Err() != nil {
			_ = engine.Cancel(id)
			return ctx.Err()
		}

		prompt, err := engine.NextPrompt(id)
		if err != nil {
			return err
		}

		chunk, err := generateWithRetry(ctx, client, prompt, genParams)
		if err != nil {
			_ = engine.ReportFailure(id, true)
			printSummary(engine, id)
			return fmt.Errorf("generation failed: %w", err)
		}

		decision, err := engine.SubmitChunk(id, chunk)
		switch {
		case errors.Is(err, storm.ErrRateLimited):
			slog.Warn("rate limited, backing off")
			if !sleepCtx(ctx, 2*time.Second) {
				_ = engine.Cancel(id)
				return ctx.Err()
			}
			continue
		case errors.Is(err, storm.ErrCircuitOpen):
			slog.Warn("circuit open, waiting for reset window")
			if !sleepCtx(ctx, 10*time.Second) {
				_ = engine.Cancel(id)
				return ctx.Err()
			}
			continue
		case err != nil:
			return err
		}

		fmt.Println(chunk)
		fmt.Println()

		if decision.Terminated {
			fmt.Printf("-- session ended: %s --\n", decision.Reason)
			printSummary(engine, id)
			return nil
		}
	}
}

// sessionParams merges CLI flags over the config defaults.
func sessionParams(problem string) reasoner.CreateParams {
	r := cfg.Reason
	p := reasoner.CreateParams{
		Problem:           problem,
		ChunkSize:         r.ChunkSize,
		CarryoverSize:     r.CarryoverSize,
		MaxIterations:     r.MaxIterations,
		GoalSignal:        r.GoalSignal,
		StormLevel:        cfg.Engine.StormLevel,
		EnableCausalTrace: reasonCausalTrace,
		LatticeType:       r.LatticeType,
		LatticeDimension:  r.LatticeDim,
	}
	if reasonChunkSize > 0 {
		p.ChunkSize = reasonChunkSize
	}
	if reasonCarryoverSize > 0 {
		p.CarryoverSize = reasonCarryoverSize
	}
	if reasonMaxIterations > 0 {
		p.MaxIterations = reasonMaxIterations
	}
	if reasonGoalSignal != "" {
		p.GoalSignal = reasonGoalSignal
	}
	if reasonStormLevel != "" {
		p.StormLevel = reasonStormLevel
	}
	return p
}

// generateWithRetry retries transient oracle failures with a short
// backoff. Fatal failures and exhausted retries return the error.
func generateWithRetry(ctx context.Context, client llm.LLMClient, prompt string,
	params llm.GenerationParams) (string, error) {

	var lastErr error
	for attempt := 0; attempt < transientRetryLimit; attempt++ {
		chunk, err := client.Generate(ctx, prompt, params)
		if err == nil {
			return chunk, nil
		}
		if llm.IsFatal(err) || ctx.Err() != nil {
			return "", err
		}
		lastErr = err
		slog.Warn("oracle call failed, retrying", "attempt", attempt+1, "error", err)
		if !sleepCtx(ctx, time.Duration(attempt+1)*time.Second) {
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

// sleepCtx sleeps unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func printSummary(engine *reasoner.Engine, id string) {
	metrics, err := engine.GetMetrics(id)
	if err != nil {
		return
	}
	fmt.Printf("iterations: %d, tokens: %d, concepts: %d, circuit: %s\n",
		metrics.Iteration, metrics.TokensConsumed,
		metrics.Concepts.PointCount, metrics.Storm.CircuitState)
}
