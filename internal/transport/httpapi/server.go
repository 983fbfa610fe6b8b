// Package httpapi exposes the chat, memory and knowledge services over
// HTTP, SSE and websockets.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sandevgo/tuskchat/internal/service/chat"
	"github.com/sandevgo/tuskchat/internal/service/knowledge"
	"github.com/sandevgo/tuskchat/internal/service/memory"
	"github.com/sandevgo/tuskchat/pkg/log"
)

const readHeaderTimeout = 10 * time.Second

type API struct {
	chat      *chat.Orchestrator
	items     *memory.Items
	knowledge *knowledge.Pipeline
}

func NewAPI(orch *chat.Orchestrator, items *memory.Items, kb *knowledge.Pipeline) *API {
	return &API{
		chat:      orch,
		items:     items,
		knowledge: kb,
	}
}

// Handler returns the routed API. ctx carries the base logger.
func (a *API) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/conversations", a.createConversation)
	api.HandleFunc("GET /v1/conversations", a.listConversations)
	api.HandleFunc("GET /v1/conversations/{id}", a.getConversation)
	api.HandleFunc("PATCH /v1/conversations/{id}", a.updateConversation)
	api.HandleFunc("DELETE /v1/conversations/{id}", a.deleteConversation)
	api.HandleFunc("POST /v1/conversations/{id}/archive", a.archiveConversation)
	api.HandleFunc("GET /v1/conversations/{id}/messages", a.listMessages)
	api.HandleFunc("POST /v1/conversations/{id}/messages", a.sendMessage)
	api.HandleFunc("GET /v1/conversations/{id}/ws", a.chatSocket)

	api.HandleFunc("POST /v1/memories", a.createMemory)
	api.HandleFunc("GET /v1/memories", a.listMemories)
	api.HandleFunc("GET /v1/memories/search", a.searchMemories)
	api.HandleFunc("GET /v1/memories/{id}", a.getMemory)
	api.HandleFunc("DELETE /v1/memories/{id}", a.deleteMemory)
	api.HandleFunc("POST /v1/memories/{id}/pin", a.pinMemory)

	api.HandleFunc("POST /v1/materials", a.submitMaterial)
	api.HandleFunc("GET /v1/materials", a.listMaterials)
	api.HandleFunc("GET /v1/materials/{id}", a.getMaterial)
	api.HandleFunc("POST /v1/materials/{id}/approve", a.approveMaterial)
	api.HandleFunc("POST /v1/materials/{id}/reject", a.rejectMaterial)
	api.HandleFunc("DELETE /v1/materials/{id}", a.deleteMaterial)

	api.HandleFunc("GET /v1/knowledge", a.queryKnowledge)
	api.HandleFunc("POST /v1/knowledge/enhance", a.enhance)

	mux.Handle("/v1/", withIdentity(api))
	return withLogging(ctx, mux)
}

// Server runs the API as a service.
type Server struct {
	addr string
	api  *API
	srv  *http.Server
}

func NewServer(addr string, api *API) *Server {
	return &Server{
		addr: addr,
		api:  api,
		srv:  &http.Server{ReadHeaderTimeout: readHeaderTimeout},
	}
}

func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.srv.Handler = s.api.Handler(ctx)
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }

	log.FromCtx(ctx).Info().Str("addr", ln.Addr().String()).Msg("http api listening")
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
