package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/service/chat"
	"github.com/sandevgo/tuskchat/pkg/log"
)

const wsWriteTimeout = 10 * time.Second

type sendRequest struct {
	Content  string `json:"content"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

func (s sendRequest) input(conversationID string) chat.SendInput {
	return chat.SendInput{
		ConversationID: conversationID,
		Content:        s.Content,
		Provider:       s.Provider,
		Model:          s.Model,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// origin checks belong to the identity proxy in front of the API
	CheckOrigin: func(*http.Request) bool { return true },
}

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	var in sendRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		a.streamSSE(w, r, in.input(id))
		return
	}

	res, err := a.chat.Send(r.Context(), subjectFrom(r.Context()), in.input(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// streamSSE writes one "data:" frame per event. Headers are sent with the
// first frame so that errors raised before streaming keep their status.
func (a *API) streamSSE(w http.ResponseWriter, r *http.Request, in chat.SendInput) {
	rc := http.NewResponseController(w)
	started := false

	_, err := a.chat.Stream(r.Context(), subjectFrom(r.Context()), in, func(ev core.StreamEvent) error {
		if !started {
			if ev.Type == core.StreamError {
				return nil
			}
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
			started = true
		}

		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	})

	if err != nil && !started {
		writeError(w, r, err)
	}
}

// chatSocket accepts {content, provider?, model?} frames and answers each with
// the same events as the SSE stream. Closing the socket cancels the running
// turn.
func (a *API) chatSocket(w http.ResponseWriter, r *http.Request) {
	subject, id := subjectFrom(r.Context()), r.PathValue("id")
	if _, err := a.chat.Get(r.Context(), subject, id); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	logger := log.FromCtx(ctx)

	frames := make(chan sendRequest, 8)
	go func() {
		defer cancel()
		defer close(frames)
		for {
			var in sendRequest
			if err := conn.ReadJSON(&in); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug().Err(err).Msg("websocket read ended")
				}
				return
			}
			select {
			case frames <- in:
			case <-ctx.Done():
				return
			}
		}
	}()

	write := func(ev core.StreamEvent) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(ev)
	}

	for in := range frames {
		errorSent := false
		_, err := a.chat.Stream(ctx, subject, in.input(id), func(ev core.StreamEvent) error {
			errorSent = errorSent || ev.Type == core.StreamError
			return write(ev)
		})
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		if !errorSent {
			if werr := write(core.StreamEvent{Type: core.StreamError, Error: err.Error()}); werr != nil {
				return
			}
		}
	}
}
