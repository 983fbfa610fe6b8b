package core

import "context"

// Session binds a chat transport to the caller and its active conversation.
type Session struct {
	Subject        Subject
	ConversationID string
}

type CmdRouter interface {
	Execute(ctx context.Context, sess *Session, input string) (string, bool)
	ListCommands() []Command
}

type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, sess *Session, args []string) (string, error)
}
