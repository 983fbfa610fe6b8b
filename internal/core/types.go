package core

import (
	"time"
)

const (
	TuskName          = "TuskChat"
	TuskUserAgent     = "TuskChat-Gateway/0.1"
	TuskRepositoryURL = "https://github.com/sandevgo/tuskchat"
	TuskVersion       = "0.1.0"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a role/content pair as sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Metadata map[string]string

// Conversation is owned by exactly one user and only mutated by the orchestrator.
type Conversation struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	Title        string    `json:"title"`
	Mode         string    `json:"mode"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	MessageCount int       `json:"messageCount"`
	TokenCount   int       `json:"tokenCount"`
	Archived     bool      `json:"archived"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// StoredMessage is an immutable persisted message. Seq defines the total
// order inside a conversation.
type StoredMessage struct {
	ID             string         `json:"id"`
	Seq            int64          `json:"-"`
	ConversationID string         `json:"conversationId"`
	OwnerID        string         `json:"-"`
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	TokensUsed     int            `json:"tokensUsed"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

func (m StoredMessage) AsMessage() Message {
	return Message{Role: m.Role, Content: m.Content}
}

// Failed reports whether the message is the user half of a failed turn.
func (m StoredMessage) Failed() bool {
	status, _ := m.Metadata["status"].(string)
	return status == TurnStatusFailed
}

const TurnStatusFailed = "failed"

type MemoryItem struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ContentType string    `json:"contentType"`
	Tags        []string  `json:"tags"`
	Pinned      bool      `json:"pinned"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Metadata keys of embedding records.
const (
	MetaOwner        = "owner"
	MetaType         = "type"
	MetaConversation = "conversation_id"
	MetaTopic        = "topic"
	MetaCreatedAt    = "created_at"
	MetaRole         = "role"
	MetaTitle        = "title"
)

// Embedding record types.
const (
	RecordMemory  = "memory"
	RecordMessage = "message"
	RecordFact    = "fact"
)

type EmbeddingRecord struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Vector   []float32 `json:"-"`
	Metadata Metadata  `json:"metadata"`
}

type SearchMatch struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Score    float32  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Filter is an exact-match metadata predicate. All pairs must match.
type Filter map[string]string

type MaterialStatus string

const (
	MaterialPending  MaterialStatus = "pending"
	MaterialApproved MaterialStatus = "approved"
	MaterialRejected MaterialStatus = "rejected"
)

type LearningMaterial struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	MaterialType string         `json:"materialType"`
	Source       string         `json:"source"`
	Status       MaterialStatus `json:"status"`
	SubmittedBy  string         `json:"submittedBy"`
	Approver     string         `json:"approver,omitempty"`
	RejectReason string         `json:"rejectReason,omitempty"`
	SubmittedAt  time.Time      `json:"submittedAt"`
	ApprovedAt   *time.Time     `json:"approvedAt,omitempty"`
	ProcessedAt  *time.Time     `json:"processedAt,omitempty"`
}

func (m LearningMaterial) Processed() bool {
	return m.ProcessedAt != nil
}

// KnowledgeInsight is one append-only entry of a topic's log.
type KnowledgeInsight struct {
	MaterialID string    `json:"materialId"`
	Insights   string    `json:"insights"`
	Patterns   []string  `json:"patterns,omitempty"`
	AddedAt    time.Time `json:"addedAt"`
}

type KnowledgeData struct {
	Insights []KnowledgeInsight `json:"insights"`
	Patterns []string           `json:"patterns"`
}

type KnowledgeEntry struct {
	Topic           string        `json:"topic"`
	KnowledgeData   KnowledgeData `json:"knowledgeData"`
	ConfidenceScore float64       `json:"confidenceScore"`
	SourceMaterials []string      `json:"sourceMaterials"`
	Version         int           `json:"version"`
	LastUpdated     time.Time     `json:"lastUpdated"`
}

func (e KnowledgeEntry) HasSource(materialID string) bool {
	for _, id := range e.SourceMaterials {
		if id == materialID {
			return true
		}
	}
	return false
}

// KnowledgeMerge is one material's contribution to a topic.
type KnowledgeMerge struct {
	Topic      string
	MaterialID string
	Insights   string
	Patterns   []string
	Confidence float64
}

// Subject is the caller identity supplied by the identity collaborator.
type Subject struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}
