package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/tuskchat/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDualEncoder is a test double for the DualEncoder interface
type mockDualEncoder struct {
	encodeQueryFunc   func(ctx context.Context, text string) ([]float32, error)
	encodePassageFunc func(ctx context.Context, text string) ([]float32, error)
	shutdownFunc      func() error

	queryCalls   []string
	passageCalls []string
}

func (m *mockDualEncoder) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	m.queryCalls = append(m.queryCalls, text)
	if m.encodeQueryFunc != nil {
		return m.encodeQueryFunc(ctx, text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockDualEncoder) EncodePassage(ctx context.Context, text string) ([]float32, error) {
	m.passageCalls = append(m.passageCalls, text)
	if m.encodePassageFunc != nil {
		return m.encodePassageFunc(ctx, text)
	}
	return []float32{0.4, 0.5, 0.6}, nil
}

func (m *mockDualEncoder) Dims() int { return 3 }

func (m *mockDualEncoder) Shutdown() error {
	if m.shutdownFunc != nil {
		return m.shutdownFunc()
	}
	return nil
}

func TestEmbedder_EncodeQuery(t *testing.T) {
	tests := []struct {
		name        string
		timeout     time.Duration
		encode      func(ctx context.Context, text string) ([]float32, error)
		want        []float32
		errContains string
	}{
		{
			name:    "successfully encodes query",
			timeout: 5 * time.Second,
			want:    []float32{0.1, 0.2, 0.3},
		},
		{
			name:    "returns error on model failure",
			timeout: 5 * time.Second,
			encode: func(ctx context.Context, text string) ([]float32, error) {
				return nil, errors.New("model connection failed")
			},
			errContains: "failed to encode query",
		},
		{
			name:    "respects timeout",
			timeout: 50 * time.Millisecond,
			encode: func(ctx context.Context, text string) ([]float32, error) {
				select {
				case <-time.After(time.Second):
					return []float32{0.1}, nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
			errContains: "context deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockDualEncoder{encodeQueryFunc: tt.encode}
			embedder := NewEmbedder(mock, WithTimeout(tt.timeout))

			got, err := embedder.EncodeQuery(context.Background(), "test query")
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, []string{"test query"}, mock.queryCalls)
		})
	}
}

func TestEmbedder_QueryCache(t *testing.T) {
	mock := &mockDualEncoder{}
	embedder := NewEmbedder(mock, WithQueryCache(16))
	defer embedder.Shutdown()

	_, err := embedder.EncodeQuery(context.Background(), "cached")
	require.NoError(t, err)
	embedder.cache.Wait()

	_, err = embedder.EncodeQuery(context.Background(), "cached")
	require.NoError(t, err)
	assert.Len(t, mock.queryCalls, 1)
}

func TestEmbedder_QueryCacheCapacity(t *testing.T) {
	const queries = 48
	mock := &mockDualEncoder{}
	embedder := NewEmbedder(mock, WithQueryCache(64))
	defer embedder.Shutdown()

	for i := range queries {
		_, err := embedder.EncodeQuery(context.Background(), fmt.Sprintf("query %d", i))
		require.NoError(t, err)
	}
	embedder.cache.Wait()
	require.Len(t, mock.queryCalls, queries)

	for i := range queries {
		_, err := embedder.EncodeQuery(context.Background(), fmt.Sprintf("query %d", i))
		require.NoError(t, err)
	}
	assert.Len(t, mock.queryCalls, queries, "every query is served from the cache")
}

func TestEmbedder_EncodePassage(t *testing.T) {
	t.Run("empty text returns nil", func(t *testing.T) {
		mock := &mockDualEncoder{}
		got, err := NewEmbedder(mock).EncodePassage(context.Background(), "  ")
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Empty(t, mock.passageCalls)
	})

	t.Run("short text is a single call", func(t *testing.T) {
		mock := &mockDualEncoder{}
		got, err := NewEmbedder(mock).EncodePassage(context.Background(), "Short text.")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.4, 0.5, 0.6}, got)
		assert.Len(t, mock.passageCalls, 1)
	})

	t.Run("long text is pooled", func(t *testing.T) {
		calls := 0
		mock := &mockDualEncoder{encodePassageFunc: func(ctx context.Context, text string) ([]float32, error) {
			calls++
			if calls%2 == 0 {
				return []float32{0, 1}, nil
			}
			return []float32{1, 0}, nil
		}}
		embedder := NewEmbedder(mock, WithChunker(ChunkerConfig{MaxTokens: 8}))

		got, err := embedder.EncodePassage(context.Background(), strings.Repeat("Alpha beta gamma delta. ", 10))
		require.NoError(t, err)
		assert.Greater(t, len(mock.passageCalls), 1)
		require.Len(t, got, 2)

		var norm float32
		for _, v := range got {
			norm += v * v
		}
		assert.InDelta(t, 1.0, norm, 1e-5)
	})

	t.Run("chunk failure carries index", func(t *testing.T) {
		calls := 0
		mock := &mockDualEncoder{encodePassageFunc: func(ctx context.Context, text string) ([]float32, error) {
			calls++
			if calls == 2 {
				return nil, errors.New("embedding failed")
			}
			return []float32{0.1}, nil
		}}
		embedder := NewEmbedder(mock, WithChunker(ChunkerConfig{MaxTokens: 8}))

		_, err := embedder.EncodePassage(context.Background(), strings.Repeat("Alpha beta gamma delta. ", 10))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to embed chunk 1")
	})
}

func TestEmbedder_Shutdown(t *testing.T) {
	shutdownCalled := false
	mock := &mockDualEncoder{shutdownFunc: func() error {
		shutdownCalled = true
		return nil
	}}

	require.NoError(t, NewEmbedder(mock, WithQueryCache(8)).Shutdown())
	assert.True(t, shutdownCalled)
}

func cosine(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

func TestHashModel_Similarity(t *testing.T) {
	m := NewHashModel(256)
	ctx := context.Background()

	q, _ := m.EncodeQuery(ctx, "favourite coffee")
	related, _ := m.EncodePassage(ctx, "The user's favourite drink is coffee with milk")
	unrelated, _ := m.EncodePassage(ctx, "Kubernetes cluster autoscaling settings")

	assert.Len(t, q, 256)
	assert.Greater(t, cosine(q, related), cosine(q, unrelated))

	again, _ := m.EncodeQuery(ctx, "FAVOURITE Coffee!")
	assert.InDelta(t, 1.0, cosine(q, again), 1e-5, "case and punctuation are folded")

	empty, _ := m.EncodeQuery(ctx, "")
	assert.InDelta(t, 1.0, cosine(empty, empty), 1e-5)
}

func TestOpenAIModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req embeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.Dimensions)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	m := NewOpenAIModel(srv.URL+"/v1/", "key", "", 3)
	vec, err := m.EncodeQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOpenAIModel_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewOpenAIModel(srv.URL, "key", "", 0).EncodePassage(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNewEmbeddingModel(t *testing.T) {
	ctx := context.Background()

	model, err := NewEmbeddingModel(ctx, &config.RAGConfig{}, &config.ProviderConfig{})
	require.NoError(t, err)
	assert.Nil(t, model, "disabled")

	model, err = NewEmbeddingModel(ctx, &config.RAGConfig{Provider: "hash", Dims: 64}, &config.ProviderConfig{})
	require.NoError(t, err)
	assert.Equal(t, 64, model.Dims())

	_, err = NewEmbeddingModel(ctx, &config.RAGConfig{Provider: "openai"}, &config.ProviderConfig{})
	assert.Error(t, err)

	_, err = NewEmbeddingModel(ctx, &config.RAGConfig{Provider: "word2vec"}, &config.ProviderConfig{})
	assert.Error(t, err)
}
