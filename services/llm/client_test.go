package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsFatal(t *testing.T) {
	plain := fmt.Errorf("connection refused")
	if IsFatal(plain) {
		t.Error("plain error classified fatal")
	}
	fatal := &FatalError{Err: plain}
	if !IsFatal(fatal) {
		t.Error("FatalError not classified fatal")
	}
	wrapped := fmt.Errorf("generate: %w", fatal)
	if !IsFatal(wrapped) {
		t.Error("wrapped FatalError not classified fatal")
	}
}

func TestNewClient_UnknownBackend(t *testing.T) {
	if _, err := NewClient("gopher", Config{}); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestOllamaGenerate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/generate" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			fmt.Fprint(w, `{"model":"test","response":"Let m = 2a.","done":true}`)
		}))
		defer srv.Close()

		client, err := NewOllamaClient(Config{BaseURL: srv.URL, Model: "test"})
		if err != nil {
			t.Fatal(err)
		}
		out, err := client.Generate(context.Background(), "prove it", GenerationParams{})
		if err != nil {
			t.Fatal(err)
		}
		if out != "Let m = 2a." {
			t.Errorf("got %q", out)
		}
	})

	t.Run("missing model is fatal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"model 'test' not found"}`)
		}))
		defer srv.Close()

		client, err := NewOllamaClient(Config{BaseURL: srv.URL, Model: "test"})
		if err != nil {
			t.Fatal(err)
		}
		_, err = client.Generate(context.Background(), "prove it", GenerationParams{})
		if !IsFatal(err) {
			t.Errorf("missing model not fatal: %v", err)
		}
	})

	t.Run("server error is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client, err := NewOllamaClient(Config{BaseURL: srv.URL, Model: "test"})
		if err != nil {
			t.Fatal(err)
		}
		_, err = client.Generate(context.Background(), "prove it", GenerationParams{})
		if err == nil {
			t.Fatal("expected error")
		}
		if IsFatal(err) {
			t.Errorf("5xx classified fatal: %v", err)
		}
	})
}

func TestNewOllamaClient_RequiresBaseURL(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "")
	if _, err := NewOllamaClient(Config{}); err == nil {
		t.Error("missing base url accepted")
	}
}
