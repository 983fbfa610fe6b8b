//go:build integration

package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sandevgo/tuskchat/internal/authz"
	"github.com/sandevgo/tuskchat/internal/config"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/providers/llm"
	"github.com/sandevgo/tuskchat/internal/providers/rag"
	"github.com/sandevgo/tuskchat/internal/service/chat"
	"github.com/sandevgo/tuskchat/internal/service/knowledge"
	"github.com/sandevgo/tuskchat/internal/service/memory"
	"github.com/sandevgo/tuskchat/internal/storage/sqlite"
	"github.com/sandevgo/tuskchat/internal/storage/vector"
	"github.com/sandevgo/tuskchat/internal/transport/httpapi"
	"github.com/sandevgo/tuskchat/pkg/log"
	"github.com/sandevgo/tuskchat/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	api      *httptest.Server
	backend  *test.FakeOpenAI
	store    *memory.Store
	embedder *memory.EmbedderWorker
	kb       *knowledge.Pipeline
}

func reply(prompt string) string {
	switch {
	case strings.Contains(prompt, "Assign topic labels"):
		return `["Backoff"]`
	case strings.Contains(prompt, "Analyze the learning material"):
		return `{"insights":"Retry with exponential backoff and jitter.","patterns":["Cap retries"],"confidence":0.8}`
	default:
		return "Noted, I will keep that in mind."
	}
}

func newStack(t *testing.T) stack {
	t.Helper()
	ctx, flush := log.NewContextWithLogger(context.Background(), true)
	t.Cleanup(flush)

	dir := t.TempDir()
	backend := test.NewFakeOpenAI(t, reply)

	db, err := sqlite.NewDB(ctx, filepath.Join(dir, "tuskchat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gw, err := llm.NewGatewayFromConfig(ctx, "custom", &config.ProviderConfig{
		CustomBaseURL: backend.URL,
		CustomModel:   "fake-large",
	})
	require.NoError(t, err)

	az, err := authz.New(ctx, "")
	require.NoError(t, err)

	index, err := vector.NewIndex(filepath.Join(dir, "vectors"))
	require.NoError(t, err)
	store := memory.NewStore(rag.NewEmbedder(rag.NewHashModel(256)), index)

	messages := sqlite.NewMessagesRepo(db)
	kb := knowledge.NewPipeline(sqlite.NewMaterialsRepo(db), sqlite.NewKnowledgeRepo(db), gw, az)

	appCfg := &config.AppConfig{RuntimePath: dir, ContextWindowSize: 30, ContextBudgetChars: 24000, MaxOutputTokens: 512}
	orch := chat.NewOrchestrator(appCfg, chat.Deps{
		Conversations: sqlite.NewConversationsRepo(db),
		Messages:      messages,
		Gateway:       gw,
		Memory:        store,
		Knowledge:     kb,
		Prompts:       memory.NewSysPrompt(appCfg),
		Authz:         az,
	})
	items := memory.NewItems(sqlite.NewMemoriesRepo(db), store, az)

	api := httptest.NewServer(httpapi.NewAPI(orch, items, kb).Handler(ctx))
	t.Cleanup(api.Close)

	return stack{
		api:      api,
		backend:  backend,
		store:    store,
		embedder: memory.NewEmbedderWorker(messages, store, 0),
		kb:       kb,
	}
}

func (s stack) post(t *testing.T, path string, body any, headers map[string]string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, s.api.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "alice")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestConversationOverOpenAICompatibleBackend(t *testing.T) {
	s := newStack(t)

	resp := s.post(t, "/v1/conversations", map[string]string{"mode": "general"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var conv core.Conversation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conv))

	resp = s.post(t, "/v1/conversations/"+conv.ID+"/messages",
		map[string]string{"content": "My cat is called Miso."}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var turn chat.TurnResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&turn))
	assert.Equal(t, "Noted, I will keep that in mind.", turn.AssistantMessage.Content)
	assert.Equal(t, "fake-large", turn.AssistantMessage.Metadata["model"])

	resp = s.post(t, "/v1/conversations/"+conv.ID+"/messages",
		map[string]string{"content": "What is my cat called?"},
		map[string]string{"Accept": "text/event-stream"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var deltas strings.Builder
	var done core.StreamEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var ev core.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		switch ev.Type {
		case core.StreamContent:
			deltas.WriteString(ev.Delta)
		case core.StreamDone:
			done = ev
		}
	}
	assert.Equal(t, "Noted, I will keep that in mind.", deltas.String())
	assert.Equal(t, core.StreamDone, done.Type)
	assert.NotEmpty(t, done.AssistantMessageID)
	assert.Equal(t, 2, s.backend.Requests())
}

func TestMessagesBecomeSearchableMemory(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	resp := s.post(t, "/v1/conversations", map[string]string{}, nil)
	var conv core.Conversation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conv))

	s.post(t, "/v1/conversations/"+conv.ID+"/messages", map[string]string{"content": "My cat is called Miso."}, nil)

	require.NoError(t, s.embedder.ProcessBatch(ctx))

	res, err := s.store.RagQuery(ctx, "My cat is called Miso.", "alice", "")
	require.NoError(t, err)
	assert.Contains(t, res.Context, "Miso")

	other, err := s.store.RagQuery(ctx, "My cat is called Miso.", "bob", "")
	require.NoError(t, err)
	assert.Empty(t, other.Matches, "memory never crosses owners")
}

func TestMaterialBecomesKnowledge(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	m, err := s.kb.Submit(ctx, core.Subject{ID: "alice"}, knowledge.SubmitInput{
		Title:   "Retries",
		Content: "Retry failed calls with exponential backoff.",
	})
	require.NoError(t, err)

	res, err := s.kb.Approve(ctx, core.Subject{ID: "root", Roles: []string{"admin"}}, m.ID)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "backoff", res.Entries[0].Topic)

	block, err := s.kb.RelevantContext(ctx, "how should I handle backoff?", 3)
	require.NoError(t, err)
	assert.Contains(t, block, "jitter")
}
