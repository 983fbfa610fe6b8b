package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/service/chat"
	"github.com/sandevgo/tuskchat/internal/service/ui"
	"github.com/sandevgo/tuskchat/pkg/log"
)

const historyFile = "input_history"

// Chat is the part of the orchestrator the REPL drives.
type Chat interface {
	Ensure(ctx context.Context, sess *core.Session) (core.Conversation, error)
	Stream(ctx context.Context, subject core.Subject, in chat.SendInput, onEvent func(core.StreamEvent) error) (chat.TurnResult, error)
}

type ReadLine struct {
	chat    Chat
	router  core.CmdRouter
	session *core.Session
	rl      *readline.Instance
}

func NewReadLine(runtimePath string, c Chat, router core.CmdRouter, subject core.Subject) (*ReadLine, error) {
	if err := os.MkdirAll(runtimePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(runtimePath, historyFile),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		chat:    c,
		router:  router,
		session: &core.Session{Subject: subject},
		rl:      rl,
	}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	fmt.Fprintln(r.rl.Stdout(), "TuskChat ready. Type /help for commands, 'exit' to quit.")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					return nil
				}
				continue
			} else if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}

		if out, ok := r.router.Execute(ctx, r.session, line); ok {
			fmt.Fprintln(r.rl.Stdout(), out)
			continue
		}

		if err := r.send(ctx, line); err != nil {
			logger.Error().Err(err).Msg("chat turn failed")
			fmt.Fprintln(r.rl.Stdout(), ui.ErrorStyle.Render("Error: "+err.Error()))
		}
	}
}

// send streams one turn. Ctrl+C while the answer is streaming cancels the
// turn, not the REPL.
func (r *ReadLine) send(ctx context.Context, content string) error {
	conv, err := r.chat.Ensure(ctx, r.session)
	if err != nil {
		return err
	}

	out := r.rl.Stdout()
	_, err = r.chat.Stream(ctx, r.session.Subject, chat.SendInput{
		ConversationID: conv.ID,
		Content:        content,
	}, func(ev core.StreamEvent) error {
		switch ev.Type {
		case core.StreamContent:
			fmt.Fprint(out, ev.Delta)
		case core.StreamDone:
			fmt.Fprintf(out, "\n%s\n", ui.TurnStats(ev.TokensUsed, ev.CostUSD))
		}
		return nil
	})
	return err
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
