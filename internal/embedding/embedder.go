// Package embedding provides the Embedder black box (a bge-small-en-v1.5
// text-to-vector HTTP endpoint) and a Redis-backed cache in front of it.
// original_source called fastembed in-process; this module treats embedding
// as an external HTTP service instead, reached through the teacher's retry/
// backoff HTTP client pool (internal/infrastructure/httpclient) and guarded
// by a circuit breaker (internal/infra/breakers) at the call site.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sawpanic/ragpatterns/internal/infrastructure/httpclient"
)

// Dim is the fixed output dimensionality of bge-small-en-v1.5.
const Dim = 384

// Embedder turns text into dense vectors. Both ingestion and retrieval use
// the same Embedder instance, preserving the determinism contract that
// identical text must always map to the identical vector.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// HTTPEmbedder calls a bge-small-en-v1.5 serving endpoint over HTTP,
// one batch request per call.
type HTTPEmbedder struct {
	baseURL string
	pool    *httpclient.ClientPool
}

// NewHTTPEmbedder returns an Embedder backed by an HTTP endpoint expected to
// accept {"texts": [...]} and return {"embeddings": [[...]]}.
func NewHTTPEmbedder(baseURL string, pool *httpclient.ClientPool) *HTTPEmbedder {
	return &HTTPEmbedder{baseURL: baseURL, pool: pool}
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed sends texts to the embedding service and returns one vector per
// input text, in the same order.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.pool.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embedding: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding: unexpected status %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}

	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding: expected %d vectors, got %d", len(texts), len(out.Embeddings))
	}

	return out.Embeddings, nil
}
