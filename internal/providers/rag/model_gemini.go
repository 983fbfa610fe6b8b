package rag

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const DefaultGeminiEmbeddingModel = "text-embedding-004"

type GeminiModel struct {
	client *genai.Client
	model  string
	dims   int
}

func NewGeminiModel(ctx context.Context, apiKey, model string, dims int) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiEmbeddingModel
	}
	return &GeminiModel{client: client, model: model, dims: dims}, nil
}

func (m *GeminiModel) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	return m.embed(ctx, text, "RETRIEVAL_QUERY")
}

func (m *GeminiModel) EncodePassage(ctx context.Context, text string) ([]float32, error) {
	return m.embed(ctx, text, "RETRIEVAL_DOCUMENT")
}

func (m *GeminiModel) Dims() int {
	return m.dims
}

func (m *GeminiModel) Shutdown() error {
	return nil
}

func (m *GeminiModel) embed(ctx context.Context, text, task string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{TaskType: task}
	if m.dims > 0 {
		dims := int32(m.dims)
		cfg.OutputDimensionality = &dims
	}

	resp, err := m.client.Models.EmbedContent(ctx, m.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini returned no embeddings")
	}
	return resp.Embeddings[0].Values, nil
}
