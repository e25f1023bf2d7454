// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jinterlante1206/AleutianStrand/services/reasoner"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter() (*gin.Engine, *reasoner.Engine) {
	engine := reasoner.New(reasoner.Options{})
	router := gin.New()
	sessions := router.Group("/v1/sessions")
	sessions.POST("", CreateSession(engine))
	sessions.GET("", ListSessions(engine))
	sessions.GET("/:sessionId/prompt", GetPrompt(engine))
	sessions.POST("/:sessionId/chunks", SubmitChunk(engine))
	sessions.POST("/:sessionId/failures", ReportFailure(engine))
	sessions.GET("/:sessionId/trace", GetTrace(engine))
	sessions.GET("/:sessionId/metrics", GetSessionMetrics(engine))
	sessions.POST("/:sessionId/concepts/query", QueryConcepts(engine))
	sessions.POST("/:sessionId/cancel", CancelSession(engine))
	sessions.DELETE("/:sessionId", DeleteSession(engine))
	return router, engine
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid response body %q: %v", w.Body.String(), err)
	}
	return out
}

func createTestSession(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/v1/sessions", CreateSessionRequest{
		Problem:       "Prove that the sum of two even numbers is even.",
		ChunkSize:     256,
		CarryoverSize: 64,
		MaxIterations: 5,
		GoalSignal:    "QED",
		StormLevel:    "disabled",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	id, _ := decodeBody(t, w)["session_id"].(string)
	if id == "" {
		t.Fatal("no session id in create response")
	}
	return id
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	router, _ := newTestRouter()
	id := createTestSession(t, router)

	w := doJSON(t, router, http.MethodGet, "/v1/sessions/"+id+"/prompt", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("prompt: status %d", w.Code)
	}
	if prompt, _ := decodeBody(t, w)["prompt"].(string); prompt == "" {
		t.Fatal("empty prompt")
	}

	w = doJSON(t, router, http.MethodPost, "/v1/sessions/"+id+"/chunks",
		SubmitChunkRequest{Chunk: "Let m = 2a and n = 2b."})
	if w.Code != http.StatusOK {
		t.Fatalf("chunk: status %d body %s", w.Code, w.Body.String())
	}
	if terminated, _ := decodeBody(t, w)["terminated"].(bool); terminated {
		t.Fatal("terminated on first chunk")
	}

	w = doJSON(t, router, http.MethodPost, "/v1/sessions/"+id+"/chunks",
		SubmitChunkRequest{Chunk: "Then m + n = 2(a + b), even. QED"})
	if w.Code != http.StatusOK {
		t.Fatalf("goal chunk: status %d", w.Code)
	}
	body := decodeBody(t, w)
	if terminated, _ := body["terminated"].(bool); !terminated {
		t.Fatalf("goal chunk did not terminate: %v", body)
	}
	if reason, _ := body["reason"].(string); reason != "goal-reached" {
		t.Errorf("reason: %q", reason)
	}

	// A further chunk conflicts with the terminal state.
	w = doJSON(t, router, http.MethodPost, "/v1/sessions/"+id+"/chunks",
		SubmitChunkRequest{Chunk: "late"})
	if w.Code != http.StatusConflict {
		t.Errorf("post-termination chunk: status %d want 409", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/v1/sessions/"+id+"/trace", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("trace: status %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/v1/sessions/"+id+"/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: status %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/v1/sessions/"+id+"/concepts/query",
		QueryConceptsRequest{Text: "even sum", K: 3})
	if w.Code != http.StatusOK {
		t.Fatalf("concepts query: status %d body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodDelete, "/v1/sessions/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/v1/sessions/"+id+"/prompt", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("prompt after delete: status %d want 404", w.Code)
	}
}

func TestCreateSession_Invalid(t *testing.T) {
	router, _ := newTestRouter()

	cases := []struct {
		name string
		req  CreateSessionRequest
	}{
		{"missing problem", CreateSessionRequest{ChunkSize: 64, CarryoverSize: 8, MaxIterations: 1}},
		{"carryover too large", CreateSessionRequest{Problem: "p", ChunkSize: 64, CarryoverSize: 64, MaxIterations: 1}},
		{"bad storm level", CreateSessionRequest{Problem: "p", ChunkSize: 64, CarryoverSize: 8, MaxIterations: 1, StormLevel: "extreme"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/v1/sessions", tc.req)
			if w.Code == http.StatusCreated {
				t.Errorf("invalid request accepted: %+v", tc.req)
			}
		})
	}
}

func TestUnknownSessionReturns404(t *testing.T) {
	router, _ := newTestRouter()
	for _, path := range []string{
		"/v1/sessions/nope/prompt",
		"/v1/sessions/nope/trace",
		"/v1/sessions/nope/metrics",
	} {
		w := doJSON(t, router, http.MethodGet, path, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: status %d want 404", path, w.Code)
		}
	}
}

func TestStormRejectionMapsTo429(t *testing.T) {
	router, _ := newTestRouter()
	w := doJSON(t, router, http.MethodPost, "/v1/sessions", CreateSessionRequest{
		Problem:       "enumerate",
		ChunkSize:     64,
		CarryoverSize: 8,
		MaxIterations: 50,
		StormLevel:    "aggressive",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d", w.Code)
	}
	id, _ := decodeBody(t, w)["session_id"].(string)

	// Aggressive preset allows 5 submissions before the limiter refuses.
	for i := 0; i < 5; i++ {
		chunk := fmt.Sprintf("alpha%d bravo%d charlie%d delta%d", i, i, i, i)
		w = doJSON(t, router, http.MethodPost, "/v1/sessions/"+id+"/chunks",
			SubmitChunkRequest{Chunk: chunk})
		if w.Code != http.StatusOK {
			t.Fatalf("submission %d: status %d", i, w.Code)
		}
	}
	w = doJSON(t, router, http.MethodPost, "/v1/sessions/"+id+"/chunks",
		SubmitChunkRequest{Chunk: "zulu yankee xray whiskey"})
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("rate limited submission: status %d want 429", w.Code)
	}
}

func TestListSessions(t *testing.T) {
	router, _ := newTestRouter()
	createTestSession(t, router)
	createTestSession(t, router)

	w := doJSON(t, router, http.MethodGet, "/v1/sessions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status %d", w.Code)
	}
	if count, _ := decodeBody(t, w)["count"].(float64); count != 2 {
		t.Errorf("count: %v want 2", count)
	}
}
