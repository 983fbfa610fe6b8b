package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sandevgo/tuskchat/internal/config"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/service/chat"
	"github.com/sandevgo/tuskchat/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

// Chat is the part of the orchestrator the bot drives.
type Chat interface {
	Ensure(ctx context.Context, sess *core.Session) (core.Conversation, error)
	Send(ctx context.Context, subject core.Subject, in chat.SendInput) (chat.TurnResult, error)
}

type Bot struct {
	bot     *tele.Bot
	sender  *sender
	chat    Chat
	router  core.CmdRouter
	subject core.Subject
	ownerID int64

	mu       sync.Mutex
	sessions map[int64]*core.Session
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	c Chat,
	router core.CmdRouter,
	roles []string,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:      b,
		sender:   newSender(b),
		chat:     c,
		router:   router,
		subject:  core.Subject{ID: cfg.SubjectID(), Roles: roles},
		ownerID:  cfg.OwnerID,
		sessions: make(map[int64]*core.Session),
	}

	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	// Only the owner talks to the bot
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil || c.Sender().ID != bot.ownerID {
				return nil
			}
			return next(c)
		}
	})

	b.Handle(tele.OnText, bot.handleMessage)

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

// session returns the chat session of a Telegram chat. Each chat keeps its
// own active conversation.
func (b *Bot) session(chatID int64) *core.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[chatID]
	if !ok {
		s = &core.Session{Subject: b.subject}
		b.sessions[chatID] = s
	}
	return s
}

func (b *Bot) handleMessage(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	logger := log.FromCtx(ctx).With().Int64("chat_id", c.Chat().ID).Logger()
	ctx = logger.WithContext(ctx)
	sess := b.session(c.Chat().ID)

	if out, ok := b.router.Execute(ctx, sess, c.Text()); ok {
		return b.sender.sendMarkdown(ctx, c.Chat(), out, true)
	}

	_ = c.Notify(tele.Typing)

	conv, err := b.chat.Ensure(ctx, sess)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open conversation")
		return c.Send(fmt.Sprintf("error: %v", err))
	}

	res, err := b.chat.Send(ctx, sess.Subject, chat.SendInput{
		ConversationID: conv.ID,
		Content:        c.Text(),
	})
	if err != nil {
		logger.Error().Err(err).Msg("chat turn failed")
		return c.Send(fmt.Sprintf("error: %v", err))
	}

	return b.sender.sendMarkdown(ctx, c.Chat(), res.AssistantMessage.Content, false)
}
