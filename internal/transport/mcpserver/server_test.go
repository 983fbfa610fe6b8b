package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/service/knowledge"
	"github.com/sandevgo/tuskchat/internal/service/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMemories struct {
	created []memory.CreateItem
	queries []string
	limits  []int
}

func (f *fakeMemories) Create(_ context.Context, subject core.Subject, in memory.CreateItem) (core.MemoryItem, error) {
	if in.Title == "" || in.Content == "" {
		return core.MemoryItem{}, core.ErrInvalidInput
	}
	f.created = append(f.created, in)
	return core.MemoryItem{ID: "m1", OwnerID: subject.ID, Title: in.Title, Content: in.Content, ContentType: in.ContentType}, nil
}

func (f *fakeMemories) Search(_ context.Context, subject core.Subject, query string, limit int, _ string) ([]core.MemoryItem, error) {
	f.queries = append(f.queries, query)
	f.limits = append(f.limits, limit)
	return []core.MemoryItem{{ID: "m1", OwnerID: subject.ID, Title: "Dentist", Content: "Tuesday at 10"}}, nil
}

type fakeKnowledge struct {
	submitted []knowledge.SubmitInput
}

func (f *fakeKnowledge) Query(_ context.Context, topic string, _ int) ([]core.KnowledgeEntry, error) {
	if topic == "" {
		return []core.KnowledgeEntry{{Topic: "go"}, {Topic: "sqlite"}}, nil
	}
	return []core.KnowledgeEntry{{Topic: topic, Version: 3}}, nil
}

func (f *fakeKnowledge) Submit(_ context.Context, subject core.Subject, in knowledge.SubmitInput) (core.LearningMaterial, error) {
	f.submitted = append(f.submitted, in)
	return core.LearningMaterial{ID: "lm1", Title: in.Title, SubmittedBy: subject.ID, Status: core.MaterialPending}, nil
}

func newClient(t *testing.T, s *Server) *client.Client {
	t.Helper()
	ctx := context.Background()

	cli, err := client.NewInProcessClient(s.mcp)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })
	require.NoError(t, cli.Start(ctx))

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "test", Version: "0.0.1"}
	_, err = cli.Initialize(ctx, req)
	require.NoError(t, err)
	return cli
}

func call(t *testing.T, cli *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := cli.CallTool(context.Background(), req)
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestServer_ListTools(t *testing.T) {
	cli := newClient(t, New(core.Subject{ID: "owner"}, &fakeMemories{}, &fakeKnowledge{}))

	res, err := cli.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"search_memory", "create_memory", "query_knowledge", "submit_material"}, names)
}

func TestServer_WithoutKnowledge(t *testing.T) {
	cli := newClient(t, New(core.Subject{ID: "owner"}, &fakeMemories{}, nil))

	res, err := cli.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)
	assert.Len(t, res.Tools, 2)
}

func TestServer_Memory(t *testing.T) {
	items := &fakeMemories{}
	cli := newClient(t, New(core.Subject{ID: "owner"}, items, &fakeKnowledge{}))

	res := call(t, cli, "search_memory", map[string]any{"query": "dentist", "limit": 3})
	assert.False(t, res.IsError)
	var found []core.MemoryItem
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "owner", found[0].OwnerID)
	assert.Equal(t, []int{3}, items.limits)

	res = call(t, cli, "search_memory", map[string]any{})
	assert.True(t, res.IsError)

	res = call(t, cli, "create_memory", map[string]any{"title": "Passport", "content": "expires 2027"})
	assert.False(t, res.IsError)
	require.Len(t, items.created, 1)
	assert.Equal(t, memory.DefaultContentType, items.created[0].ContentType)

	res = call(t, cli, "create_memory", map[string]any{"title": "no content"})
	assert.True(t, res.IsError)
	assert.True(t, strings.HasPrefix(text(t, res), "failed to store memory"))
}

func TestServer_Knowledge(t *testing.T) {
	kb := &fakeKnowledge{}
	cli := newClient(t, New(core.Subject{ID: "owner"}, &fakeMemories{}, kb))

	res := call(t, cli, "query_knowledge", map[string]any{})
	var entries []core.KnowledgeEntry
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &entries))
	assert.Len(t, entries, 2)

	res = call(t, cli, "submit_material", map[string]any{
		"title":   "Backoff",
		"content": "Use jittered exponential backoff.",
	})
	assert.False(t, res.IsError)
	var m core.LearningMaterial
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &m))
	assert.Equal(t, core.MaterialPending, m.Status)
	assert.Equal(t, "owner", m.SubmittedBy)
	require.Len(t, kb.submitted, 1)
}
