package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/providers/rag"
	"github.com/sandevgo/tuskchat/internal/storage/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...StoreOption) *Store {
	t.Helper()
	index, err := vector.NewIndex("")
	require.NoError(t, err)
	return NewStore(rag.NewEmbedder(rag.NewHashModel(256)), index, opts...)
}

type failingEncoder struct{}

func (failingEncoder) EncodeQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("encoder offline")
}

func (failingEncoder) EncodePassage(context.Context, string) ([]float32, error) {
	return nil, errors.New("encoder offline")
}

func TestStore_Disabled(t *testing.T) {
	ctx := context.Background()
	s := NewDisabledStore()
	assert.False(t, s.Enabled())

	res, err := s.Store(ctx, "id-1", "text", nil)
	require.NoError(t, err)
	assert.True(t, res.Disabled)
	assert.Equal(t, "id-1", res.ID)
	assert.ErrorIs(t, res.Err(), core.ErrMemoryStoreDisabled)

	search, err := s.Search(ctx, "text", 5, nil)
	require.NoError(t, err)
	assert.True(t, search.Disabled)
	assert.Empty(t, search.Matches)

	rc, err := s.RagQuery(ctx, "text", "alice", "conv-1")
	require.NoError(t, err)
	assert.True(t, rc.Disabled)
	assert.Equal(t, "text", rc.Query)
	assert.Empty(t, rc.Context)

	assert.NoError(t, s.Delete(ctx, "id-1"))
	assert.NoError(t, s.DeleteWhere(ctx, core.Filter{core.MetaConversation: "conv-1"}))
}

func TestStore_StoreAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	records := []struct {
		id, text, owner string
	}{
		{"a1", "I love hiking in the Alps every summer", "alice"},
		{"a2", "My favourite programming language is Go", "alice"},
		{"b1", "I love hiking in the Rocky mountains", "bob"},
	}
	for _, r := range records {
		res, err := s.Store(ctx, r.id, r.text, core.Metadata{core.MetaOwner: r.owner, core.MetaType: core.RecordMemory})
		require.NoError(t, err)
		require.NoError(t, res.Err())
	}

	result, err := s.Search(ctx, "hiking in the Alps", 5, core.Filter{core.MetaOwner: "alice"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Matches)
	assert.Equal(t, "a1", result.Matches[0].ID)
	for _, m := range result.Matches {
		assert.Equal(t, "alice", m.Metadata[core.MetaOwner])
		assert.GreaterOrEqual(t, m.Score, float32(DefaultMinSimilarity))
	}
	assert.NotEmpty(t, result.Matches[0].Metadata[core.MetaCreatedAt])

	require.NoError(t, s.Delete(ctx, "a1"))
	result, err = s.Search(ctx, "hiking in the Alps", 5, core.Filter{core.MetaOwner: "alice"})
	require.NoError(t, err)
	for _, m := range result.Matches {
		assert.NotEqual(t, "a1", m.ID)
	}
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := newTestStore(t).Store(ctx, "", "   ", nil)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	index, err := vector.NewIndex("")
	require.NoError(t, err)
	s := NewStore(failingEncoder{}, index)

	_, err = s.Store(ctx, "x", "text", nil)
	assert.ErrorContains(t, err, "encoder offline")
	_, err = s.Search(ctx, "text", 3, nil)
	assert.ErrorContains(t, err, "encoder offline")
}

func TestStore_DeleteWhere(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i, conv := range []string{"c1", "c1", "c2"} {
		_, err := s.Store(ctx, "", "deploy the service on friday "+string(rune('a'+i)), core.Metadata{
			core.MetaOwner:        "alice",
			core.MetaType:         core.RecordMessage,
			core.MetaConversation: conv,
		})
		require.NoError(t, err)
	}

	require.NoError(t, s.DeleteWhere(ctx, core.Filter{core.MetaConversation: "c1"}))

	result, err := s.Search(ctx, "deploy the service", 10, core.Filter{core.MetaOwner: "alice"})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "c2", result.Matches[0].Metadata[core.MetaConversation])
}

func TestStore_RagQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithTopK(10), WithMinSimilarity(0.05))

	seed := []struct {
		text string
		meta core.Metadata
	}{
		{"Alice is allergic to peanuts", core.Metadata{core.MetaOwner: "alice", core.MetaType: core.RecordFact}},
		{"Peanuts recipe notes\n\nAvoid peanuts in every recipe", core.Metadata{core.MetaOwner: "alice", core.MetaType: core.RecordMemory, core.MetaTitle: "Peanuts recipe notes"}},
		{"can you suggest a snack without peanuts", core.Metadata{core.MetaOwner: "alice", core.MetaType: core.RecordMessage, core.MetaConversation: "old", core.MetaRole: "user"}},
		{"Bob loves peanuts", core.Metadata{core.MetaOwner: "bob", core.MetaType: core.RecordFact}},
	}
	for _, r := range seed {
		_, err := s.Store(ctx, "", r.text, r.meta)
		require.NoError(t, err)
	}

	rc, err := s.RagQuery(ctx, "peanuts snack", "alice", "current")
	require.NoError(t, err)

	assert.False(t, rc.Disabled)
	assert.Equal(t, "peanuts snack", rc.Query)
	assert.Contains(t, rc.Context, "### Relevant Memory")
	assert.Contains(t, rc.Context, "- Alice is allergic to peanuts")
	assert.Contains(t, rc.Context, "### Related Past Conversations")
	assert.Contains(t, rc.Context, "- user: can you suggest a snack without peanuts")
	assert.NotContains(t, rc.Context, "Bob")
	for _, m := range rc.Matches {
		assert.Equal(t, "alice", m.Metadata[core.MetaOwner])
	}
}
