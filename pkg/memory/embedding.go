package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/attache/attache/pkg/fault"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// HTTPEmbedder calls an external embedding endpoint in the local-inference
// request shape. Results are cached by content hash.
type HTTPEmbedder struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
	cache     *lru.Cache[string, []float32]
}

// NewHTTPEmbedder builds an embedder against baseURL with an LRU cache of
// cacheSize entries.
func NewHTTPEmbedder(baseURL, model string, dimension, cacheSize int) (*HTTPEmbedder, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fault.Fatal("create embedding cache: %v", err)
	}
	return &HTTPEmbedder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		dimension: dimension,
		client:    &http.Client{Timeout: 60 * time.Second},
		cache:     cache,
	}, nil
}

// Dimension returns the configured vector width.
func (e *HTTPEmbedder) Dimension() int { return e.dimension }

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the vector for text, from cache when possible.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vec, ok := e.cache.Get(key); ok {
		return vec, nil
	}

	payload, err := json.Marshal(embeddingRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fault.BackendUnavailable("encode embedding request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fault.BackendUnavailable("build embedding request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fault.BackendUnavailable("call embedding endpoint: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fault.BackendUnavailable("embedding endpoint returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var reply embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fault.BackendUnavailable("decode embedding response: %v", err)
	}
	if len(reply.Embedding) == 0 {
		return nil, fault.BackendUnavailable("embedding endpoint returned an empty vector")
	}
	if e.dimension > 0 && len(reply.Embedding) != e.dimension {
		return nil, fault.Fatal("embedding dimension mismatch: endpoint returned %d, expected %d",
			len(reply.Embedding), e.dimension)
	}

	e.cache.Add(key, reply.Embedding)
	return reply.Embedding, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
