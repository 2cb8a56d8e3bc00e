// Package mlclient provides the concrete ML backends the enrichment
// pipeline talks to: an embeddings client backed by OpenAI's SDK pointed at
// a TabAgent-compatible endpoint, a text generator backed by any-llm-go's
// Ollama provider, and hand-rolled HTTP/JSON clients for rerank and image
// processing, the two operations neither pack SDK covers.
package mlclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

// EmbedderConfig configures the OpenAI-protocol embeddings client.
type EmbedderConfig struct {
	// Endpoint is the base URL of the ML service (TABAGENT_ML_ENDPOINT).
	// Left empty, the openai-go client falls back to api.openai.com.
	Endpoint string
	APIKey   string
	Model    string
	// Dims is the expected vector width, used only to report Dimensions()
	// without requiring an extra round trip.
	Dims    int
	Timeout time.Duration
}

// DefaultEmbedderConfig targets a local ML endpoint with a 1024-dim model,
// matching the dimensionality pkg/vectorindex's HNSW config defaults to.
func DefaultEmbedderConfig() EmbedderConfig {
	return EmbedderConfig{
		Endpoint: "http://localhost:8080/v1",
		Model:    "text-embedding-3-small",
		Dims:     1024,
		Timeout:  30 * time.Second,
	}
}

// Embedder implements embed.Embedder against an OpenAI-protocol embeddings
// endpoint.
type Embedder struct {
	client oai.Client
	model  string
	dims   int
}

// NewEmbedder builds an Embedder from cfg.
func NewEmbedder(cfg EmbedderConfig) *Embedder {
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.Endpoint))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}

	return &Embedder{
		client: oai.NewClient(reqOpts...),
		model:  cfg.Model,
		dims:   cfg.Dims,
	}
}

// Embed generates a single embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: e.model,
		Input: oai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("ml client: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("ml client: embed: empty response")
	}
	return float64sToFloat32s(resp.Data[0].Embedding), nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: e.model,
		Input: oai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("ml client: embed batch: %w", err)
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if int(d.Index) >= len(out) {
			continue
		}
		out[d.Index] = float64sToFloat32s(d.Embedding)
	}
	return out, nil
}

// Dimensions returns the configured embedding width.
func (e *Embedder) Dimensions() int { return e.dims }

// Model returns the configured model name.
func (e *Embedder) Model() string { return e.model }

func float64sToFloat32s(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
