package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/pkg/log"
	"github.com/sandevgo/tuskchat/pkg/srv"
)

const (
	defaultBatchSize          = 100
	defaultExtractionInterval = 30 * time.Minute
	defaultSessionGap         = 30 * time.Minute
	defaultCommitTimeout      = 5 * time.Minute
	contextMessages           = 5
	windowSize                = 20
	windowOverlap             = 5
)

// Extractor distills durable user facts from conversations and stores them
// as fact records of the conversation owner.
type Extractor struct {
	*srv.Ticker
	repo     core.MessagesRepository
	llm      core.Completer
	store    core.MemoryStore
	provider string
	model    string

	BatchSize           int
	ContextGapThreshold time.Duration
	// CommitTimeout delays an incomplete trailing window until the
	// conversation has been quiet this long.
	CommitTimeout time.Duration
}

func NewExtractor(repo core.MessagesRepository, llm core.Completer, store core.MemoryStore, interval time.Duration) *Extractor {
	if interval <= 0 {
		interval = defaultExtractionInterval
	}
	e := &Extractor{
		repo:                repo,
		llm:                 llm,
		store:               store,
		BatchSize:           defaultBatchSize,
		ContextGapThreshold: defaultSessionGap,
		CommitTimeout:       defaultCommitTimeout,
	}
	e.Ticker = srv.NewTicker("fact_extractor", interval, e.ProcessBatch)
	return e
}

// WithModel selects the backend used for extraction. Empty values use the
// gateway defaults.
func (e *Extractor) WithModel(provider, model string) *Extractor {
	e.provider = provider
	e.model = model
	return e
}

func (e *Extractor) ProcessBatch(ctx context.Context) error {
	unextracted, err := e.repo.GetUnextractedMessages(ctx, e.BatchSize)
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}
	if len(unextracted) == 0 {
		return nil
	}

	unextractedIDs := make(map[string]struct{}, len(unextracted))
	for _, m := range unextracted {
		unextractedIDs[m.ID] = struct{}{}
	}

	for _, convMsgs := range groupByConversation(unextracted) {
		first := convMsgs[0]
		contextMsgs, err := e.repo.GetRecentExtractedMessages(ctx, first.ConversationID, first.CreatedAt, contextMessages)
		if err != nil {
			return fmt.Errorf("fetch context messages: %w", err)
		}

		allMsgs := append(contextMsgs, convMsgs...)
		for _, session := range splitByContextSessions(allMsgs, e.ContextGapThreshold) {
			if err := e.processSessionWindows(ctx, session, unextractedIDs); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *Extractor) processSessionWindows(ctx context.Context, session []core.StoredMessage, unextractedIDs map[string]struct{}) error {
	if len(session) == 0 {
		return nil
	}

	windows := createSlidingWindows(session, windowSize, windowOverlap)

	for i, window := range windows {
		isLastWindow := i == len(windows)-1

		if isLastWindow && len(window) < windowSize {
			lastMsg := window[len(window)-1]
			if time.Since(lastMsg.CreatedAt) < e.CommitTimeout {
				continue
			}
		}

		// zombie sessions
		if !hasUnextracted(window, unextractedIDs) {
			continue
		}

		if err := e.processWindow(ctx, window, unextractedIDs); err != nil {
			return err
		}
	}

	return nil
}

func createSlidingWindows(msgs []core.StoredMessage, size, overlap int) [][]core.StoredMessage {
	if len(msgs) == 0 {
		return nil
	}

	step := size - overlap
	var windows [][]core.StoredMessage

	for i := 0; i < len(msgs); i += step {
		end := min(i+size, len(msgs))

		window := make([]core.StoredMessage, end-i)
		copy(window, msgs[i:end])
		windows = append(windows, window)

		if end == len(msgs) {
			break
		}
	}

	return windows
}

func (e *Extractor) processWindow(ctx context.Context, window []core.StoredMessage, unextractedIDs map[string]struct{}) error {
	conversation, allIDs := formatConversation(window)

	logger := log.FromCtx(ctx)
	logger.Debug().Int("count", len(window)).Msg("extracting facts from window")

	if strings.TrimSpace(conversation) != "" {
		facts, err := e.extractFacts(ctx, conversation)
		if err != nil {
			logger.Error().Err(err).Str("conversation_id", window[0].ConversationID).Msg("extraction failed")
			return fmt.Errorf("extraction failed: %w", err)
		}

		if err = e.persistFacts(ctx, window[0], facts); err != nil {
			return err
		}
	}

	return e.markUnextracted(ctx, allIDs, unextractedIDs)
}

func (e *Extractor) markUnextracted(ctx context.Context, ids []string, unextractedIDs map[string]struct{}) error {
	toMark := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := unextractedIDs[id]; ok {
			toMark = append(toMark, id)
			delete(unextractedIDs, id)
		}
	}

	if len(toMark) == 0 {
		return nil
	}

	if err := e.repo.MarkMessagesExtracted(ctx, toMark); err != nil {
		return fmt.Errorf("mark extracted: %w", err)
	}
	return nil
}

func (e *Extractor) extractFacts(ctx context.Context, conversation string) ([]extractedFact, error) {
	const systemPrompt = "You are a knowledge extraction system. Output only valid JSON."

	resp, err := e.llm.Chat(ctx, e.provider, core.ChatRequest{
		Model:        e.model,
		SystemPrompt: systemPrompt,
		Messages:     []core.Message{{Role: core.RoleUser, Content: buildExtractionPrompt(conversation)}},
	})
	if err != nil {
		return nil, fmt.Errorf("llm chat: %w", err)
	}

	return parseExtractionResponse(resp.Content)
}

// persistFacts stores facts under ids derived from owner and text, so a
// fact extracted twice overwrites itself.
func (e *Extractor) persistFacts(ctx context.Context, origin core.StoredMessage, facts []extractedFact) error {
	logger := log.FromCtx(ctx)

	for _, f := range facts {
		text := strings.TrimSpace(f.Fact)
		if text == "" {
			continue
		}

		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(origin.OwnerID+"|"+strings.ToLower(text))).String()
		res, err := e.store.Store(ctx, id, text, core.Metadata{
			core.MetaOwner:        origin.OwnerID,
			core.MetaType:         core.RecordFact,
			core.MetaConversation: origin.ConversationID,
			core.MetaTopic:        f.Category,
		})
		if err != nil {
			return fmt.Errorf("failed to save fact '%s': %w", text, err)
		}
		if res.Disabled {
			return nil
		}
		logger.Info().Str("category", f.Category).Msg("fact extracted")
	}
	return nil
}

func groupByConversation(msgs []core.StoredMessage) [][]core.StoredMessage {
	index := make(map[string]int)
	var groups [][]core.StoredMessage
	for _, m := range msgs {
		i, ok := index[m.ConversationID]
		if !ok {
			i = len(groups)
			index[m.ConversationID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], m)
	}
	return groups
}

func splitByContextSessions(msgs []core.StoredMessage, threshold time.Duration) [][]core.StoredMessage {
	if len(msgs) == 0 {
		return nil
	}

	var groups [][]core.StoredMessage
	currentGroup := []core.StoredMessage{msgs[0]}

	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Sub(msgs[i-1].CreatedAt) > threshold {
			groups = append(groups, currentGroup)
			currentGroup = []core.StoredMessage{}
		}
		currentGroup = append(currentGroup, msgs[i])
	}

	if len(currentGroup) > 0 {
		groups = append(groups, currentGroup)
	}

	return groups
}

func hasUnextracted(window []core.StoredMessage, unextractedIDs map[string]struct{}) bool {
	for _, msg := range window {
		if _, isNew := unextractedIDs[msg.ID]; isNew {
			return true
		}
	}
	return false
}

func formatConversation(msgs []core.StoredMessage) (string, []string) {
	var b strings.Builder
	ids := make([]string, 0, len(msgs))

	for _, m := range msgs {
		ids = append(ids, m.ID)
		if m.Role == core.RoleSystem || m.Failed() {
			continue
		}

		b.WriteString(strings.ToUpper(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}

	return b.String(), ids
}

type extractedFact struct {
	Fact     string `json:"fact"`
	Category string `json:"category"`
}

func buildExtractionPrompt(conversation string) string {
	return fmt.Sprintf(
		`Extract distinct, permanent facts about the user from the conversation. Output format: JSON list of objects {fact, category}. Categories: [preference, user_fact, project, instruction]. Rules: 1. Ignore greetings and small talk. 2. Facts must be self-contained (replace "he" with "User"). 3. Output [] when there is nothing durable. Conversation: %s`,
		conversation,
	)
}

func parseExtractionResponse(content string) ([]extractedFact, error) {
	jsonStr := extractJSONArray(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var facts []extractedFact
	if err := json.Unmarshal([]byte(jsonStr), &facts); err != nil {
		return nil, fmt.Errorf("unmarshal facts: %w", err)
	}

	return facts, nil
}

func extractJSONArray(content string) string {
	start := strings.Index(content, "[")
	if start == -1 {
		return ""
	}

	end := strings.LastIndex(content[start:], "]")
	if end == -1 {
		return ""
	}

	return content[start : start+end+1]
}
