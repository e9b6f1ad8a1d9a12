package vectorsearch

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder produces embedding vectors for a batch of texts, per spec §4.10's
// "embeddings produced by an external embedding service". Indexing and
// search both go through this interface so tests can stub it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// openAIEmbedder calls an OpenAI-compatible /embeddings endpoint. Grounded on
// the gateway's own provider-routing story: most upstreams this gateway
// talks to (OpenAI, Groq, Together, Cohere-compat) expose the same
// Chat-Completions-adjacent /embeddings contract, so a single openai-go
// client pointed at baseURL covers the common case.
type openAIEmbedder struct {
	client openai.Client
	model  string
}

// NewOpenAIEmbedder builds an Embedder backed by an OpenAI-compatible
// embeddings endpoint at baseURL, authenticated with apiKey.
func NewOpenAIEmbedder(baseURL, apiKey, model string) Embedder {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &openAIEmbedder{client: openai.NewClient(opts...), model: model}
}

func (e *openAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
