// Package mcpserver exposes memory and knowledge operations as MCP tools
// over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/service/knowledge"
	"github.com/sandevgo/tuskchat/internal/service/memory"
	"github.com/sandevgo/tuskchat/pkg/log"
)

const (
	defaultSearchLimit    = 5
	defaultKnowledgeLimit = 10
)

type Memories interface {
	Create(ctx context.Context, subject core.Subject, in memory.CreateItem) (core.MemoryItem, error)
	Search(ctx context.Context, subject core.Subject, query string, limit int, contentType string) ([]core.MemoryItem, error)
}

type Knowledge interface {
	Query(ctx context.Context, topic string, limit int) ([]core.KnowledgeEntry, error)
	Submit(ctx context.Context, subject core.Subject, in knowledge.SubmitInput) (core.LearningMaterial, error)
}

// Server serves the tools to a single local client. Every call runs as the
// configured local subject.
type Server struct {
	mcp     *server.MCPServer
	subject core.Subject
	items   Memories
	kb      Knowledge

	stdin  io.Reader
	stdout io.Writer
}

func New(subject core.Subject, items Memories, kb Knowledge) *Server {
	s := &Server{
		mcp: server.NewMCPServer(
			core.TuskName,
			core.TuskVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		subject: subject,
		items:   items,
		kb:      kb,
		stdin:   os.Stdin,
		stdout:  os.Stdout,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("search_memory",
		mcp.WithDescription("Search the user's memory items by meaning"),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to look for")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of items, default 5")),
		mcp.WithString("content_type", mcp.Description("Only items of this content type")),
	), s.searchMemory)

	s.mcp.AddTool(mcp.NewTool("create_memory",
		mcp.WithDescription("Store a note in the user's memory"),
		mcp.WithString("title", mcp.Required()),
		mcp.WithString("content", mcp.Required()),
		mcp.WithString("content_type", mcp.Description("Defaults to note")),
		mcp.WithBoolean("pinned"),
	), s.createMemory)

	if s.kb == nil {
		return
	}

	s.mcp.AddTool(mcp.NewTool("query_knowledge",
		mcp.WithDescription("Read the knowledge base. Without a topic the most confident topics are listed"),
		mcp.WithString("topic", mcp.Description("Topic to read")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of topics, default 10")),
	), s.queryKnowledge)

	s.mcp.AddTool(mcp.NewTool("submit_material",
		mcp.WithDescription("Submit a learning material for review. Empty content with an http(s) source is fetched"),
		mcp.WithString("title"),
		mcp.WithString("content"),
		mcp.WithString("source", mcp.Description("URL or origin of the material")),
		mcp.WithString("material_type", mcp.Enum("article", "html", "notes", "transcript")),
	), s.submitMaterial)
}

func (s *Server) searchMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	found, err := s.items.Search(ctx, s.subject, query,
		req.GetInt("limit", defaultSearchLimit),
		req.GetString("content_type", ""))
	if err != nil {
		return mcp.NewToolResultErrorFromErr("search failed", err), nil
	}
	return jsonResult(found)
}

func (s *Server) createMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	item, err := s.items.Create(ctx, s.subject, memory.CreateItem{
		Title:       req.GetString("title", ""),
		Content:     req.GetString("content", ""),
		ContentType: req.GetString("content_type", memory.DefaultContentType),
		Pinned:      req.GetBool("pinned", false),
	})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to store memory", err), nil
	}
	return jsonResult(item)
}

func (s *Server) queryKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.kb.Query(ctx, req.GetString("topic", ""), req.GetInt("limit", defaultKnowledgeLimit))
	if err != nil {
		return mcp.NewToolResultErrorFromErr("knowledge query failed", err), nil
	}
	return jsonResult(entries)
}

func (s *Server) submitMaterial(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, err := s.kb.Submit(ctx, s.subject, knowledge.SubmitInput{
		Title:        req.GetString("title", ""),
		Content:      req.GetString("content", ""),
		Source:       req.GetString("source", ""),
		MaterialType: req.GetString("material_type", ""),
	})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to submit material", err), nil
	}
	return jsonResult(m)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Start blocks serving stdio until the context is done or stdin closes.
func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("subject", s.subject.ID).Msg("serving mcp over stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, s.stdin, s.stdout)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return nil
}
