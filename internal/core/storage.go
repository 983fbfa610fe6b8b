package core

import (
	"context"
	"time"
)

type ConversationRepository interface {
	CreateConversation(ctx context.Context, conv Conversation) error
	GetConversation(ctx context.Context, id string) (Conversation, error)
	ListConversations(ctx context.Context, ownerID string, includeArchived bool) ([]Conversation, error)
	// UpdateConversation persists title, mode, provider, model and archived.
	UpdateConversation(ctx context.Context, conv Conversation) error
	DeleteConversation(ctx context.Context, id string) error
}

type MessagesRepository interface {
	// AppendTurn stores both messages and bumps the conversation counters
	// in one transaction. CreatedAt and Seq are assigned by the repository.
	AppendTurn(ctx context.Context, user, assistant *StoredMessage) error
	// AppendFailedTurn stores only the user message of a failed turn. The
	// conversation counters are left untouched.
	AppendFailedTurn(ctx context.Context, user *StoredMessage) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]StoredMessage, error)
	// ListContextMessages is ListMessages without failed turns.
	ListContextMessages(ctx context.Context, conversationID string, limit int) ([]StoredMessage, error)

	GetUnembeddedMessages(ctx context.Context, limit int) ([]StoredMessage, error)
	MarkMessagesEmbedded(ctx context.Context, ids []string) error
	GetUnextractedMessages(ctx context.Context, limit int) ([]StoredMessage, error)
	MarkMessagesExtracted(ctx context.Context, ids []string) error
	GetRecentExtractedMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]StoredMessage, error)
}

type MemoryRepository interface {
	CreateMemory(ctx context.Context, item MemoryItem) error
	GetMemory(ctx context.Context, id string) (MemoryItem, error)
	ListMemories(ctx context.Context, ownerID string, limit int) ([]MemoryItem, error)
	SearchMemories(ctx context.Context, ownerID, query, contentType string, limit int) ([]MemoryItem, error)
	SetMemoryPinned(ctx context.Context, id string, pinned bool) error
	DeleteMemory(ctx context.Context, id string) error
}

type MaterialRepository interface {
	CreateMaterial(ctx context.Context, m LearningMaterial) error
	GetMaterial(ctx context.Context, id string) (LearningMaterial, error)
	ListMaterials(ctx context.Context, status MaterialStatus, limit int) ([]LearningMaterial, error)
	// ApproveMaterial transitions pending to approved. It reports false when
	// the material was not pending.
	ApproveMaterial(ctx context.Context, id, approver string, at time.Time) (bool, error)
	RejectMaterial(ctx context.Context, id, approver, reason string) (bool, error)
	DeleteMaterial(ctx context.Context, id string) (bool, error)
	MarkMaterialProcessed(ctx context.Context, id string, at time.Time) error
	ListUnprocessedMaterials(ctx context.Context, limit int) ([]LearningMaterial, error)
}

type KnowledgeRepository interface {
	GetKnowledge(ctx context.Context, topic string) (KnowledgeEntry, error)
	ListKnowledge(ctx context.Context, limit int) ([]KnowledgeEntry, error)
	SearchKnowledge(ctx context.Context, terms []string, limit int) ([]KnowledgeEntry, error)
	// MergeKnowledge appends one material's contribution to a topic and
	// returns the stored entry. It fails with ErrVersionConflict when the
	// entry changed between read and write.
	MergeKnowledge(ctx context.Context, m KnowledgeMerge) (KnowledgeEntry, error)
}
