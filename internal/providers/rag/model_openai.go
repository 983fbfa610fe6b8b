package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultOpenAIEmbeddingModel = "text-embedding-3-small"

// OpenAIModel calls an OpenAI-compatible /embeddings endpoint.
type OpenAIModel struct {
	baseURL string
	apiKey  string
	model   string
	dims    int
	client  *http.Client
}

func NewOpenAIModel(baseURL, apiKey, model string, dims int) *OpenAIModel {
	if model == "" {
		model = DefaultOpenAIEmbeddingModel
	}
	return &OpenAIModel{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type embeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (m *OpenAIModel) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	return m.embed(ctx, text)
}

func (m *OpenAIModel) EncodePassage(ctx context.Context, text string) ([]float32, error) {
	return m.embed(ctx, text)
}

func (m *OpenAIModel) Dims() int {
	return m.dims
}

func (m *OpenAIModel) Shutdown() error {
	m.client.CloseIdleConnections()
	return nil
}

func (m *OpenAIModel) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: m.model, Input: text, Dimensions: m.dims})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding api error (status %d): %s", resp.StatusCode, string(raw))
	}

	var out embeddingResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("embedding api error: %s", out.Error.Message)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding api returned no vectors")
	}
	return out.Data[0].Embedding, nil
}
