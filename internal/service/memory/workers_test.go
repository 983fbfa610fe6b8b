package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []core.ChatRequest
}

func (f *fakeCompleter) Chat(_ context.Context, _ string, req core.ChatRequest) (core.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return core.ChatResponse{}, f.err
	}
	return core.ChatResponse{Content: f.reply}, nil
}

func (f *fakeCompleter) Stream(ctx context.Context, provider string, req core.ChatRequest, _ core.DeltaFunc) (core.ChatResponse, error) {
	return f.Chat(ctx, provider, req)
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type workerFixture struct {
	messages *sqlite.MessagesRepo
	conv     core.Conversation
}

func newWorkerFixture(t *testing.T, turns int) workerFixture {
	t.Helper()
	ctx := context.Background()
	db := newTestDB(t)
	convs := sqlite.NewConversationsRepo(db)
	messages := sqlite.NewMessagesRepo(db)

	now := time.Now().UTC().Add(-time.Hour)
	conv := core.Conversation{ID: uuid.NewString(), OwnerID: "alice", Mode: DefaultMode, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, convs.CreateConversation(ctx, conv))

	for i := 0; i < turns; i++ {
		user := &core.StoredMessage{ID: uuid.NewString(), ConversationID: conv.ID, Role: core.RoleUser,
			Content: "I moved to Lisbon and I work as a data engineer", CreatedAt: now}
		assistant := &core.StoredMessage{ID: uuid.NewString(), ConversationID: conv.ID, Role: core.RoleAssistant,
			Content: "Nice, Lisbon is lovely", CreatedAt: now}
		require.NoError(t, messages.AppendTurn(ctx, user, assistant))
	}
	return workerFixture{messages: messages, conv: conv}
}

func TestEmbedderWorker_ProcessBatch(t *testing.T) {
	ctx := context.Background()
	fx := newWorkerFixture(t, 2)
	store := newTestStore(t)
	w := NewEmbedderWorker(fx.messages, store, time.Minute)

	require.NoError(t, w.ProcessBatch(ctx))

	pending, err := fx.messages.GetUnembeddedMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	res, err := store.Search(ctx, "Lisbon data engineer", 10, core.Filter{
		core.MetaConversation: fx.conv.ID,
		core.MetaType:         core.RecordMessage,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "alice", res.Matches[0].Metadata[core.MetaOwner])
	assert.Equal(t, core.RoleUser, res.Matches[0].Metadata[core.MetaRole])

	// nothing left to do
	require.NoError(t, w.ProcessBatch(ctx))
}

func TestEmbedderWorker_DisabledStoreKeepsBacklog(t *testing.T) {
	ctx := context.Background()
	fx := newWorkerFixture(t, 1)
	w := NewEmbedderWorker(fx.messages, NewDisabledStore(), time.Minute)

	require.NoError(t, w.ProcessBatch(ctx))

	pending, err := fx.messages.GetUnembeddedMessages(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestEmbedderWorker_RunsAsService(t *testing.T) {
	fx := newWorkerFixture(t, 1)
	w := NewEmbedderWorker(fx.messages, newTestStore(t), 10*time.Millisecond)

	go func() { _ = w.Start(context.Background()) }()

	assert.Eventually(t, func() bool {
		pending, err := fx.messages.GetUnembeddedMessages(context.Background(), 10)
		return err == nil && len(pending) == 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Shutdown(context.Background()))
}

func TestExtractor_ProcessBatch(t *testing.T) {
	ctx := context.Background()
	fx := newWorkerFixture(t, 3)
	store := newTestStore(t)
	llm := &fakeCompleter{reply: "Sure:\n```json\n[{\"fact\":\"User lives in Lisbon\",\"category\":\"user_fact\"},{\"fact\":\"User works as a data engineer\",\"category\":\"user_fact\"}]\n```"}

	e := NewExtractor(fx.messages, llm, store, time.Minute).WithModel("openai", "gpt-4o-mini")
	e.CommitTimeout = 0

	require.NoError(t, e.ProcessBatch(ctx))
	require.Equal(t, 1, llm.calls())
	assert.Equal(t, "gpt-4o-mini", llm.reqs[0].Model)
	assert.Contains(t, llm.reqs[0].Messages[0].Content, "USER: I moved to Lisbon")

	pending, err := fx.messages.GetUnextractedMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	res, err := store.Search(ctx, "user lives in Lisbon", 10, core.Filter{
		core.MetaOwner: "alice",
		core.MetaType:  core.RecordFact,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "User lives in Lisbon", res.Matches[0].Text)
	assert.Equal(t, "user_fact", res.Matches[0].Metadata[core.MetaTopic])

	require.NoError(t, e.ProcessBatch(ctx))
	assert.Equal(t, 1, llm.calls(), "extracted messages are not sent again")
}

func TestExtractor_RecentWindowWaits(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	convs := sqlite.NewConversationsRepo(db)
	messages := sqlite.NewMessagesRepo(db)

	now := time.Now().UTC()
	conv := core.Conversation{ID: uuid.NewString(), OwnerID: "alice", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, convs.CreateConversation(ctx, conv))
	require.NoError(t, messages.AppendTurn(ctx,
		&core.StoredMessage{ID: uuid.NewString(), ConversationID: conv.ID, Role: core.RoleUser, Content: "hi", CreatedAt: now},
		&core.StoredMessage{ID: uuid.NewString(), ConversationID: conv.ID, Role: core.RoleAssistant, Content: "hello", CreatedAt: now},
	))

	llm := &fakeCompleter{reply: "[]"}
	e := NewExtractor(messages, llm, newTestStore(t), time.Minute)

	require.NoError(t, e.ProcessBatch(ctx))
	assert.Zero(t, llm.calls())
}

func TestExtractor_LLMFailureKeepsMessages(t *testing.T) {
	ctx := context.Background()
	fx := newWorkerFixture(t, 1)
	llm := &fakeCompleter{err: errors.New("provider down")}

	e := NewExtractor(fx.messages, llm, newTestStore(t), time.Minute)
	e.CommitTimeout = 0

	assert.Error(t, e.ProcessBatch(ctx))

	pending, err := fx.messages.GetUnextractedMessages(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestCreateSlidingWindows(t *testing.T) {
	msgs := make([]core.StoredMessage, 45)
	for i := range msgs {
		msgs[i].ID = uuid.NewString()
	}

	windows := createSlidingWindows(msgs, windowSize, windowOverlap)
	require.Len(t, windows, 3)
	assert.Len(t, windows[0], 20)
	assert.Equal(t, msgs[15].ID, windows[1][0].ID)
	assert.Equal(t, msgs[44].ID, windows[2][len(windows[2])-1].ID)

	assert.Nil(t, createSlidingWindows(nil, windowSize, windowOverlap))
}

func TestSplitByContextSessions(t *testing.T) {
	base := time.Now()
	msgs := []core.StoredMessage{
		{ID: "1", CreatedAt: base},
		{ID: "2", CreatedAt: base.Add(time.Minute)},
		{ID: "3", CreatedAt: base.Add(2 * time.Hour)},
	}

	sessions := splitByContextSessions(msgs, 30*time.Minute)
	require.Len(t, sessions, 2)
	assert.Len(t, sessions[0], 2)
	assert.Equal(t, "3", sessions[1][0].ID)
}

func TestParseExtractionResponse(t *testing.T) {
	facts, err := parseExtractionResponse(`noise [{"fact":"User likes tea","category":"preference"}] trailing`)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "preference", facts[0].Category)

	_, err = parseExtractionResponse("no json here")
	assert.Error(t, err)
}
