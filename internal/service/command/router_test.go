package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/service/chat"
	"github.com/sandevgo/tuskchat/internal/service/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConversations struct {
	convs map[string]core.Conversation
	seq   int
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{convs: make(map[string]core.Conversation)}
}

func (f *fakeConversations) Create(_ context.Context, subject core.Subject, in chat.CreateInput) (core.Conversation, error) {
	mode := in.Mode
	if mode == "" {
		mode = chat.DefaultMode
	}
	if mode == "pirate" {
		return core.Conversation{}, core.ErrInvalidInput
	}
	f.seq++
	conv := core.Conversation{ID: string(rune('a' + f.seq)), OwnerID: subject.ID, Mode: mode}
	f.convs[conv.ID] = conv
	return conv, nil
}

func (f *fakeConversations) Ensure(ctx context.Context, sess *core.Session) (core.Conversation, error) {
	if conv, ok := f.convs[sess.ConversationID]; ok && !conv.Archived {
		return conv, nil
	}
	conv, err := f.Create(ctx, sess.Subject, chat.CreateInput{})
	sess.ConversationID = conv.ID
	return conv, err
}

func (f *fakeConversations) Archive(_ context.Context, _ core.Subject, id string) (core.Conversation, error) {
	conv, ok := f.convs[id]
	if !ok {
		return core.Conversation{}, core.ErrConversationNotFound
	}
	conv.Archived = true
	f.convs[id] = conv
	return conv, nil
}

func (f *fakeConversations) SetModel(_ context.Context, _ core.Subject, id, provider, model string) (core.Conversation, error) {
	if provider != "" && provider != "openrouter" && provider != "anthropic" {
		return core.Conversation{}, core.ErrProviderUnavailable
	}
	conv := f.convs[id]
	conv.Provider, conv.Model = provider, model
	f.convs[id] = conv
	return conv, nil
}

type fakeCatalog struct{}

func (fakeCatalog) Providers() []string     { return []string{"anthropic", "openrouter"} }
func (fakeCatalog) DefaultProvider() string { return "openrouter" }

func (fakeCatalog) DefaultModel(provider string) string {
	if provider == "anthropic" {
		return "claude-sonnet-4-5"
	}
	return "openai/gpt-4o-mini"
}

func (fakeCatalog) Models(_ context.Context, provider string) ([]core.Model, error) {
	if provider == "anthropic" {
		return nil, nil
	}
	return []core.Model{{ID: "openai/gpt-4o-mini"}, {ID: "meta-llama/llama-3.1-8b"}}, nil
}

type fakeMemories struct {
	created []memory.CreateItem
	found   []core.MemoryItem
}

func (f *fakeMemories) Create(_ context.Context, subject core.Subject, in memory.CreateItem) (core.MemoryItem, error) {
	f.created = append(f.created, in)
	return core.MemoryItem{ID: "m1", OwnerID: subject.ID, Title: in.Title, Content: in.Content}, nil
}

func (f *fakeMemories) Search(context.Context, core.Subject, string, int, string) ([]core.MemoryItem, error) {
	return f.found, nil
}

type fakeKnowledge struct {
	entries map[string]core.KnowledgeEntry
}

func (f fakeKnowledge) Query(_ context.Context, topic string, _ int) ([]core.KnowledgeEntry, error) {
	if topic == "" {
		out := make([]core.KnowledgeEntry, 0, len(f.entries))
		for _, e := range f.entries {
			out = append(out, e)
		}
		return out, nil
	}
	if e, ok := f.entries[topic]; ok {
		return []core.KnowledgeEntry{e}, nil
	}
	return nil, nil
}

type fixture struct {
	router *Router
	convs  *fakeConversations
	items  *fakeMemories
	sess   *core.Session
}

func newFixture() fixture {
	convs := newFakeConversations()
	items := &fakeMemories{}
	kb := fakeKnowledge{entries: map[string]core.KnowledgeEntry{
		"resilience": {
			Topic:           "resilience",
			ConfidenceScore: 0.8,
			Version:         2,
			SourceMaterials: []string{"m1", "m2"},
			KnowledgeData: core.KnowledgeData{
				Insights: []core.KnowledgeInsight{{Insights: "Retry with jitter.", AddedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}},
				Patterns: []string{"Cap retries"},
			},
		},
	}}

	return fixture{
		router: New(NewCommands(convs, fakeCatalog{}, items, kb)),
		convs:  convs,
		items:  items,
		sess:   &core.Session{Subject: core.Subject{ID: "alice"}},
	}
}

func (fx fixture) run(t *testing.T, input string) string {
	t.Helper()
	out, ok := fx.router.Execute(context.Background(), fx.sess, input)
	require.True(t, ok)
	return out
}

func TestRouter_PlainText(t *testing.T) {
	fx := newFixture()
	_, ok := fx.router.Execute(context.Background(), fx.sess, "hello there")
	assert.False(t, ok)
}

func TestRouter_UnknownAndHelp(t *testing.T) {
	fx := newFixture()

	assert.Contains(t, fx.run(t, "/nope"), "Unknown command: /nope")

	help := fx.run(t, "/help@tusk_bot")
	for _, name := range []string{"/archive", "/help", "/knowledge", "/model", "/new", "/recall", "/remember"} {
		assert.Contains(t, help, name)
	}

	var names []string
	for _, cmd := range fx.router.ListCommands() {
		names = append(names, cmd.Name())
	}
	assert.Equal(t, []string{"archive", "help", "knowledge", "model", "new", "recall", "remember"}, names)
}

func TestRouter_WithoutKnowledge(t *testing.T) {
	r := New(NewCommands(newFakeConversations(), fakeCatalog{}, &fakeMemories{}, nil))
	out, ok := r.Execute(context.Background(), &core.Session{}, "/knowledge")
	require.True(t, ok)
	assert.Contains(t, out, "Unknown command")
}

func TestNewAndArchive(t *testing.T) {
	fx := newFixture()

	assert.Contains(t, fx.run(t, "/archive"), "no active conversation")

	out := fx.run(t, "/new coding")
	assert.Contains(t, out, "New conversation started")
	assert.Contains(t, out, "`coding`")
	id := fx.sess.ConversationID
	require.NotEmpty(t, id)

	assert.Contains(t, fx.run(t, "/new pirate"), "Command Error")
	assert.Equal(t, id, fx.sess.ConversationID)

	assert.Contains(t, fx.run(t, "/archive"), "Archived")
	assert.Empty(t, fx.sess.ConversationID)
	assert.True(t, fx.convs.convs[id].Archived)
}

func TestModelCommand(t *testing.T) {
	fx := newFixture()

	out := fx.run(t, "/model")
	assert.Contains(t, out, "`openrouter/openai/gpt-4o-mini`")
	require.NotEmpty(t, fx.sess.ConversationID, "the command starts a conversation")

	out = fx.run(t, "/model anthropic/claude-opus-4-1")
	assert.Contains(t, out, "`anthropic/claude-opus-4-1`")
	conv := fx.convs.convs[fx.sess.ConversationID]
	assert.Equal(t, "anthropic", conv.Provider)
	assert.Equal(t, "claude-opus-4-1", conv.Model)

	out = fx.run(t, "/model anthropic")
	assert.Contains(t, out, "`anthropic/claude-sonnet-4-5`")

	out = fx.run(t, "/model list openrouter")
	assert.Contains(t, out, "`openrouter/meta-llama/llama-3.1-8b`")

	out = fx.run(t, "/model list")
	assert.Contains(t, out, "does not publish a model list")
}

func TestRememberAndRecall(t *testing.T) {
	fx := newFixture()

	assert.Contains(t, fx.run(t, "/remember"), "Usage")

	out := fx.run(t, "/remember Passport | expires in March 2027")
	assert.Contains(t, out, "Remembered: Passport")
	require.Len(t, fx.items.created, 1)
	assert.Equal(t, "expires in March 2027", fx.items.created[0].Content)
	assert.Equal(t, memory.DefaultContentType, fx.items.created[0].ContentType)

	fx.run(t, "/remember I prefer answers with code samples and short explanations")
	require.Len(t, fx.items.created, 2)
	assert.Equal(t, "I prefer answers with code samples and s…", fx.items.created[1].Title)

	assert.Contains(t, fx.run(t, "/recall dentist"), `Nothing found for "dentist"`)

	fx.items.found = []core.MemoryItem{{Title: "Dentist", Content: "Tuesday at 10", Pinned: true}}
	out = fx.run(t, "/recall dentist")
	assert.Contains(t, out, "📌 Dentist")
	assert.Contains(t, out, "Tuesday at 10")
}

func TestKnowledgeCommand(t *testing.T) {
	fx := newFixture()

	assert.Contains(t, fx.run(t, "/knowledge"), "**resilience** (v2, confidence 0.80)")

	out := fx.run(t, "/knowledge resilience")
	assert.Contains(t, out, "Knowledge: resilience")
	assert.Contains(t, out, "Retry with jitter.")
	assert.Contains(t, out, "› Cap retries")

	assert.Contains(t, fx.run(t, "/knowledge databases"), `No knowledge on "databases" yet`)
}

func TestSplitNote(t *testing.T) {
	tests := []struct {
		in, title, content string
	}{
		{"Title | body", "Title", "body"},
		{" | body only", "body only", "body only"},
		{"short note", "short note", "short note"},
		{"", "", ""},
	}
	for _, tt := range tests {
		title, content := splitNote(tt.in)
		assert.Equal(t, tt.title, title, tt.in)
		assert.Equal(t, tt.content, content, tt.in)
	}
}

func TestFormatter_Error(t *testing.T) {
	f := NewResponseFormatter()
	assert.Contains(t, f.Error(errors.New("boom")), "**Issue**: boom")
}
