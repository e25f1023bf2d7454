// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jinterlante1206/AleutianStrand/services/reasoner"
)

// GetTrace handles GET /v1/sessions/:sessionId/trace. The response holds
// the reasoning trace and, when enabled, the causal events in
// topological order.
func GetTrace(engine *reasoner.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		trace, err := engine.GetTrace(id)
		if err != nil {
			abortWith(c, err)
			return
		}
		events, err := engine.CausalEvents(id)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id":    id,
			"trace":         trace,
			"causal_events": events,
		})
	}
}

// GetSessionMetrics handles GET /v1/sessions/:sessionId/metrics.
func GetSessionMetrics(engine *reasoner.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics, err := engine.GetMetrics(c.Param("sessionId"))
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, metrics)
	}
}

// QueryConceptsRequest is the POST /v1/sessions/:sessionId/concepts/query body.
type QueryConceptsRequest struct {
	Text string `json:"text" binding:"required"`
	K    int    `json:"k"`
}

// QueryConcepts handles POST /v1/sessions/:sessionId/concepts/query.
func QueryConcepts(engine *reasoner.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		var req QueryConceptsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.K <= 0 {
			req.K = 5
		}
		matches, err := engine.QueryConcepts(id, req.Text, req.K)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": id,
			"matches":    matches,
			"count":      len(matches),
		})
	}
}

// HealthCheck handles GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
