// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin handlers for the reasoning engine
// API. Handlers translate between HTTP and the engine facade; they hold
// no session state of their own.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jinterlante1206/AleutianStrand/services/reasoner"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/reason"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/storm"
)

// statusFor maps engine sentinel errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, reasoner.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, reason.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, reason.ErrSessionTerminated):
		return http.StatusConflict
	case errors.Is(err, storm.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, storm.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// CreateSessionRequest is the POST /v1/sessions body.
type CreateSessionRequest struct {
	Problem           string `json:"problem" binding:"required"`
	ChunkSize         int    `json:"chunk_size" binding:"required,gt=0"`
	CarryoverSize     int    `json:"carryover_size" binding:"gte=0"`
	MaxIterations     int    `json:"max_iterations" binding:"required,gte=1"`
	GoalSignal        string `json:"goal_signal"`
	StormLevel        string `json:"storm_level"`
	EnableCausalTrace bool   `json:"enable_causal_trace"`
	LatticeType       string `json:"lattice_type"`
	LatticeDimension  int    `json:"lattice_dimension"`
}

// CreateSession handles POST /v1/sessions.
func CreateSession(engine *reasoner.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := engine.CreateSession(reasoner.CreateParams{
			Problem:           req.Problem,
			ChunkSize:         req.ChunkSize,
			CarryoverSize:     req.CarryoverSize,
			MaxIterations:     req.MaxIterations,
			GoalSignal:        req.GoalSignal,
			StormLevel:        req.StormLevel,
			EnableCausalTrace: req.EnableCausalTrace,
			LatticeType:       req.LatticeType,
			LatticeDimension:  req.LatticeDimension,
		})
		if err != nil {
			slog.Warn("session creation rejected", "error", err)
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"session_id": id})
	}
}

// GetPrompt handles GET /v1/sessions/:sessionId/prompt.
func GetPrompt(engine *reasoner.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		prompt, err := engine.NextPrompt(id)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": id, "prompt": prompt})
	}
}

// SubmitChunkRequest is the POST /v1/sessions/:sessionId/chunks body.
type SubmitChunkRequest struct {
	Chunk string `json:"chunk" binding:"required"`
}

// SubmitChunk handles POST /v1/sessions/:sessionId/chunks.
func SubmitChunk(engine *reasoner.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		var req SubmitChunkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		decision, err := engine.SubmitChunk(id, req.Chunk)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, decision)
	}
}

// ReportFailureRequest is the POST /v1/sessions/:sessionId/failures body.
type ReportFailureRequest struct {
	Fatal bool `json:"fatal"`
}

// ReportFailure handles POST /v1/sessions/:sessionId/failures. The
// generation driver reports oracle failures here so the session's
// circuit breaker sees them.
func ReportFailure(engine *reasoner.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		var req ReportFailureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := engine.ReportFailure(id, req.Fatal); err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "recorded", "fatal": req.Fatal})
	}
}

// CancelSession handles POST /v1/sessions/:sessionId/cancel. The session
// stays readable until deleted or expired.
func CancelSession(engine *reasoner.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		if err := engine.Cancel(id); err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cancelled", "session_id": id})
	}
}

// DeleteSession handles DELETE /v1/sessions/:sessionId.
func DeleteSession(engine *reasoner.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		slog.Info("deleting session", "session_id", id)
		if err := engine.RemoveSession(id); err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "session_id": id})
	}
}

// ListSessions handles GET /v1/sessions.
func ListSessions(engine *reasoner.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids := engine.SessionIDs()
		c.JSON(http.StatusOK, gin.H{"session_ids": ids, "count": len(ids)})
	}
}
