// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jinterlante1206/AleutianStrand/services/reasoner"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/handlers"
)

// SetupRoutes wires the reasoning engine API onto a gin router.
func SetupRoutes(router *gin.Engine, engine *reasoner.Engine) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", handlers.CreateSession(engine))
			sessions.GET("", handlers.ListSessions(engine))
			sessions.GET("/:sessionId/prompt", handlers.GetPrompt(engine))
			sessions.POST("/:sessionId/chunks", handlers.SubmitChunk(engine))
			sessions.POST("/:sessionId/failures", handlers.ReportFailure(engine))
			sessions.GET("/:sessionId/trace", handlers.GetTrace(engine))
			sessions.GET("/:sessionId/metrics", handlers.GetSessionMetrics(engine))
			sessions.POST("/:sessionId/concepts/query", handlers.QueryConcepts(engine))
			sessions.POST("/:sessionId/cancel", handlers.CancelSession(engine))
			sessions.DELETE("/:sessionId", handlers.DeleteSession(engine))
		}
	}
}
