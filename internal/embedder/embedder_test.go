package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

func ollamaServer(t *testing.T, handler func(req embedRequest) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		status, body := handler(req)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbed(t *testing.T) {
	t.Parallel()
	var got embedRequest
	srv := ollamaServer(t, func(req embedRequest) (int, any) {
		got = req
		vecs := make([][]float32, len(req.Input))
		for i, s := range req.Input {
			vecs[i] = []float32{float32(len(s)), 1}
		}
		return http.StatusOK, embedResponse{Embeddings: vecs}
	})

	e := NewOllamaEmbedder(srv.URL+"/", "nomic-embed-text")
	vecs, err := e.Embed(context.Background(), []string{"a", "bbb"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got.Model != "nomic-embed-text" || len(got.Input) != 2 {
		t.Errorf("request = %+v", got)
	}
	if len(vecs) != 2 || vecs[0][0] != 1 || vecs[1][0] != 3 {
		t.Errorf("vectors = %v", vecs)
	}
	if e.Model() != "nomic-embed-text" {
		t.Errorf("Model() = %q", e.Model())
	}
}

func TestOllamaEmbedEmpty(t *testing.T) {
	t.Parallel()
	e := NewOllamaEmbedder("http://127.0.0.1:0", "m")
	vecs, err := e.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("Embed(nil) = %v, %v", vecs, err)
	}
}

func TestOllamaEmbedCountMismatch(t *testing.T) {
	t.Parallel()
	srv := ollamaServer(t, func(embedRequest) (int, any) {
		return http.StatusOK, embedResponse{Embeddings: [][]float32{{1}}}
	})

	_, err := NewOllamaEmbedder(srv.URL, "m").Embed(context.Background(), []string{"a", "b"})
	if err == nil || !strings.Contains(err.Error(), "expected 2 embeddings, got 1") {
		t.Errorf("err = %v", err)
	}
}

func TestOllamaEmbedHTTPError(t *testing.T) {
	t.Parallel()
	srv := ollamaServer(t, func(embedRequest) (int, any) {
		return http.StatusNotFound, map[string]string{"error": "model not found"}
	})

	_, err := NewOllamaEmbedder(srv.URL, "m").Embed(context.Background(), []string{"a"})
	if err == nil || !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("err = %v", err)
	}
}

func TestOllamaEmbedCancelled(t *testing.T) {
	t.Parallel()
	srv := ollamaServer(t, func(embedRequest) (int, any) {
		return http.StatusOK, embedResponse{Embeddings: [][]float32{{1}}}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewOllamaEmbedder(srv.URL, "m").Embed(ctx, []string{"a"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestVertexInstances(t *testing.T) {
	t.Parallel()
	instances, err := vertexInstances([]string{"def f(): pass"})
	if err != nil {
		t.Fatal(err)
	}
	fields := instances[0].GetStructValue().GetFields()
	if fields["content"].GetStringValue() != "def f(): pass" {
		t.Errorf("content = %v", fields["content"])
	}
	if fields["task_type"].GetStringValue() != "RETRIEVAL_DOCUMENT" {
		t.Errorf("task_type = %v", fields["task_type"])
	}
}

func TestVertexEmbeddings(t *testing.T) {
	t.Parallel()
	pred, err := structpb.NewValue(map[string]any{
		"embeddings": map[string]any{
			"values":     []any{0.5, -1.0, 2.0},
			"statistics": map[string]any{"token_count": 3.0},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	vecs, err := vertexEmbeddings([]*structpb.Value{pred})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 1 || len(vecs[0]) != 3 || vecs[0][0] != 0.5 || vecs[0][1] != -1 {
		t.Errorf("vectors = %v", vecs)
	}

	empty, _ := structpb.NewValue(map[string]any{})
	if _, err := vertexEmbeddings([]*structpb.Value{empty}); err == nil {
		t.Error("expected error for prediction without values")
	}
}

func TestNewProvider(t *testing.T) {
	t.Parallel()
	e, err := New(context.Background(), "ollama", Options{Model: "m", OllamaURL: "http://x"})
	if err != nil || e.Model() != "m" {
		t.Errorf("New(ollama) = %v, %v", e, err)
	}
	if _, err := New(context.Background(), "vertex", Options{}); err == nil {
		t.Error("expected error for vertex without project")
	}
	if _, err := New(context.Background(), "openai", Options{}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
