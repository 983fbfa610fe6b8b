package memory

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/pkg/log"
)

const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.2
)

// Encoder embeds queries and passages. *rag.Embedder satisfies it.
type Encoder interface {
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
	EncodePassage(ctx context.Context, text string) ([]float32, error)
}

// Index is the append/delete-only vector index. *vector.Index satisfies it.
type Index interface {
	Add(ctx context.Context, rec core.EmbeddingRecord) error
	Query(ctx context.Context, vec []float32, topK int, filter core.Filter) ([]core.SearchMatch, error)
	Delete(ctx context.Context, ids ...string) error
	DeleteWhere(ctx context.Context, filter core.Filter) error
}

// Store is the semantic memory. Without an encoder or index it runs in
// disabled mode: every call succeeds and reports Disabled.
type Store struct {
	encoder       Encoder
	index         Index
	topK          int
	minSimilarity float32
}

type StoreOption func(*Store)

func WithTopK(k int) StoreOption {
	return func(s *Store) {
		if k > 0 {
			s.topK = k
		}
	}
}

func WithMinSimilarity(v float32) StoreOption {
	return func(s *Store) { s.minSimilarity = v }
}

func NewStore(encoder Encoder, index Index, opts ...StoreOption) *Store {
	s := &Store{
		encoder:       encoder,
		index:         index,
		topK:          DefaultTopK,
		minSimilarity: DefaultMinSimilarity,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewDisabledStore is used when no embedding provider is configured.
func NewDisabledStore() *Store {
	return NewStore(nil, nil)
}

func (s *Store) Enabled() bool {
	return s.encoder != nil && s.index != nil
}

func (s *Store) Store(ctx context.Context, id, text string, meta core.Metadata) (core.StoreResult, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if !s.Enabled() {
		return core.StoreResult{ID: id, Disabled: true}, nil
	}
	if strings.TrimSpace(text) == "" {
		return core.StoreResult{}, fmt.Errorf("%w: empty text", core.ErrInvalidInput)
	}

	vec, err := s.encoder.EncodePassage(ctx, text)
	if err != nil {
		return core.StoreResult{}, fmt.Errorf("failed to embed record %s: %w", id, err)
	}

	md := make(core.Metadata, len(meta)+1)
	maps.Copy(md, meta)
	if _, ok := md[core.MetaCreatedAt]; !ok {
		md[core.MetaCreatedAt] = time.Now().UTC().Format(time.RFC3339)
	}

	if err := s.index.Add(ctx, core.EmbeddingRecord{ID: id, Text: text, Vector: vec, Metadata: md}); err != nil {
		return core.StoreResult{}, err
	}
	return core.StoreResult{ID: id}, nil
}

// Search returns up to topK matches for query ranked by cosine similarity.
// Matches below the minimum similarity are dropped.
func (s *Store) Search(ctx context.Context, query string, topK int, filter core.Filter) (core.SearchResult, error) {
	if !s.Enabled() {
		return core.SearchResult{Disabled: true}, nil
	}
	if topK <= 0 {
		topK = s.topK
	}

	vec, err := s.encoder.EncodeQuery(ctx, query)
	if err != nil {
		return core.SearchResult{}, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := s.index.Query(ctx, vec, topK, filter)
	if err != nil {
		return core.SearchResult{}, err
	}

	kept := matches[:0]
	for _, m := range matches {
		if m.Score >= s.minSimilarity {
			kept = append(kept, m)
		}
	}
	return core.SearchResult{Matches: kept}, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if !s.Enabled() {
		return nil
	}
	return s.index.Delete(ctx, id)
}

func (s *Store) DeleteWhere(ctx context.Context, filter core.Filter) error {
	if !s.Enabled() {
		return nil
	}
	return s.index.DeleteWhere(ctx, filter)
}

// RagQuery searches the owner's records and formats them into one prompt
// block: memories and facts first, then past conversation snippets.
func (s *Store) RagQuery(ctx context.Context, query, ownerID, conversationID string) (core.RagContext, error) {
	out := core.RagContext{Query: query}
	if !s.Enabled() {
		out.Disabled = true
		return out, nil
	}

	res, err := s.Search(ctx, query, s.topK, core.Filter{core.MetaOwner: ownerID})
	if err != nil {
		return out, err
	}
	out.Matches = res.Matches

	var memories, history []string
	for _, m := range res.Matches {
		switch m.Metadata[core.MetaType] {
		case core.RecordMessage:
			text := m.Text
			if role := m.Metadata[core.MetaRole]; role != "" {
				text = role + ": " + text
			}
			line := "- " + text
			if m.Metadata[core.MetaConversation] == conversationID {
				line = "- (earlier in this conversation) " + text
			}
			history = append(history, line)
		default:
			if title := m.Metadata[core.MetaTitle]; title != "" && !strings.HasPrefix(m.Text, title) {
				memories = append(memories, "- "+title+": "+m.Text)
			} else {
				memories = append(memories, "- "+m.Text)
			}
		}
	}

	var sb strings.Builder
	if len(memories) > 0 {
		sb.WriteString("\n### Relevant Memory\n")
		sb.WriteString(strings.Join(memories, "\n"))
		sb.WriteString("\n")
	}
	if len(history) > 0 {
		sb.WriteString("\n### Related Past Conversations\n")
		sb.WriteString(strings.Join(history, "\n"))
		sb.WriteString("\n")
	}
	out.Context = sb.String()

	log.FromCtx(ctx).Debug().
		Int("memories", len(memories)).
		Int("history", len(history)).
		Msg("rag context built")

	return out, nil
}
