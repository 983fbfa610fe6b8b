// Package compress fits conversation history into a character budget.
package compress

import (
	"context"
	_ "embed"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/pkg/log"
)

const (
	// CharsPerToken is the fixed heuristic used for every budget estimate.
	CharsPerToken = 4

	SummaryPrefix = "Summary of earlier conversation:\n"

	minSummaryChars  = 256
	minSummaryTokens = 64
)

//go:embed prompt/summarize.md
var summarizePrompt string

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// Size is the total rune length of msgs.
func Size(msgs []core.Message) int {
	total := 0
	for _, m := range msgs {
		total += utf8.RuneCountInString(m.Content)
	}
	return total
}

type Compressor struct {
	llm      core.Completer
	provider string
	model    string
}

// New returns a compressor summarizing through llm. A nil llm always uses
// the extractive fallback.
func New(llm core.Completer) *Compressor {
	return &Compressor{llm: llm}
}

// For returns a copy that summarizes with the given backend.
func (c *Compressor) For(provider, model string) *Compressor {
	cp := *c
	cp.provider = provider
	cp.model = model
	return &cp
}

// Compress keeps the first and last message verbatim and replaces the
// interior with one system-role summary when msgs exceed budgetChars.
// It never fails; a summarizer error falls back to an extractive summary.
func (c *Compressor) Compress(ctx context.Context, msgs []core.Message, budgetChars int) []core.Message {
	if budgetChars <= 0 || len(msgs) <= 2 || Size(msgs) <= budgetChars {
		return msgs
	}

	first, last := msgs[0], msgs[len(msgs)-1]
	interior := msgs[1 : len(msgs)-1]

	// Already compressed and still over budget: the edges alone are too big.
	if len(interior) == 1 && isSummary(interior[0]) {
		return msgs
	}

	remaining := budgetChars - utf8.RuneCountInString(first.Content) - utf8.RuneCountInString(last.Content)
	remaining -= utf8.RuneCountInString(SummaryPrefix)
	if remaining < minSummaryChars {
		remaining = minSummaryChars
	}

	summary, err := c.summarize(ctx, interior, remaining)
	if err != nil {
		log.FromCtx(ctx).Warn().
			Err(err).
			Int("messages", len(interior)).
			Msg("summarizer failed, using extractive summary")
		summary = extractive(interior, remaining)
	}

	return []core.Message{
		first,
		{Role: core.RoleSystem, Content: SummaryPrefix + truncate(summary, remaining)},
		last,
	}
}

func (c *Compressor) summarize(ctx context.Context, interior []core.Message, limit int) (string, error) {
	if c.llm == nil {
		return extractive(interior, limit), nil
	}

	maxTokens := limit / CharsPerToken
	if maxTokens < minSummaryTokens {
		maxTokens = minSummaryTokens
	}

	resp, err := c.llm.Chat(ctx, c.provider, core.ChatRequest{
		Model:        c.model,
		SystemPrompt: strings.ReplaceAll(summarizePrompt, "{{LIMIT}}", strconv.Itoa(limit)),
		Messages:     []core.Message{{Role: core.RoleUser, Content: transcript(interior)}},
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return extractive(interior, limit), nil
	}
	return summary, nil
}

func transcript(msgs []core.Message) string {
	var sb strings.Builder
	for i, m := range msgs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.ToUpper(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}
	return sb.String()
}

// extractive keeps the transcript head up to limit runes.
func extractive(msgs []core.Message, limit int) string {
	return truncate(transcript(msgs), limit)
}

func isSummary(m core.Message) bool {
	return m.Role == core.RoleSystem && strings.HasPrefix(m.Content, SummaryPrefix)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}
