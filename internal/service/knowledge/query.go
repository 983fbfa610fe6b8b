package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/pkg/log"
	"golang.org/x/text/cases"
)

const (
	DefaultContextLimit = 3
	maxQueryTerms       = 8
	minTermRunes        = 3
	maxInsightRunes     = 600
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {}, "your": {},
	"with": {}, "this": {}, "that": {}, "from": {}, "have": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "how": {}, "why": {}, "who": {}, "can": {}, "does": {},
	"should": {}, "would": {}, "could": {}, "about": {}, "into": {}, "there": {}, "their": {},
	"will": {}, "was": {}, "were": {}, "been": {}, "any": {}, "all": {}, "some": {}, "use": {},
}

// Query returns the entry for topic, or the most confident entries when
// topic is empty. An unknown topic yields no entries.
func (p *Pipeline) Query(ctx context.Context, topic string, limit int) ([]core.KnowledgeEntry, error) {
	if strings.TrimSpace(topic) == "" {
		return p.entries.ListKnowledge(ctx, limit)
	}

	e, err := p.entries.GetKnowledge(ctx, NormalizeTopic(topic))
	if errors.Is(err, core.ErrKnowledgeNotFound) {
		return []core.KnowledgeEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return []core.KnowledgeEntry{e}, nil
}

// RelevantContext formats the entries matching the keywords of query as a
// prompt block. It returns "" when nothing matches.
func (p *Pipeline) RelevantContext(ctx context.Context, query string, limit int) (string, error) {
	terms := Keywords(query)
	if len(terms) == 0 {
		return "", nil
	}
	if limit <= 0 {
		limit = DefaultContextLimit
	}

	entries, err := p.entries.SearchKnowledge(ctx, terms, limit)
	if err != nil {
		return "", fmt.Errorf("knowledge search: %w", err)
	}
	if len(entries) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("\n### Knowledge Base\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "- %s (confidence %.2f): %s\n", e.Topic, e.ConfidenceScore, latestInsights(e))
		if len(e.KnowledgeData.Patterns) > 0 {
			fmt.Fprintf(&sb, "  Patterns: %s\n", strings.Join(e.KnowledgeData.Patterns, "; "))
		}
	}

	log.FromCtx(ctx).Debug().Int("entries", len(entries)).Strs("terms", terms).Msg("knowledge context built")
	return sb.String(), nil
}

// EnhanceResponse asks the model to fold relevant knowledge into base. Any
// failure returns base unchanged.
func (p *Pipeline) EnhanceResponse(ctx context.Context, query, base string) string {
	logger := log.FromCtx(ctx)

	knowledge, err := p.RelevantContext(ctx, query, DefaultContextLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("knowledge lookup failed, response not enhanced")
		return base
	}
	if knowledge == "" {
		return base
	}

	resp, err := p.llm.Chat(ctx, p.provider, core.ChatRequest{
		Model: p.model,
		Messages: []core.Message{{Role: core.RoleUser, Content: render(enhancePrompt,
			"{{QUERY}}", query,
			"{{KNOWLEDGE}}", strings.TrimSpace(knowledge),
			"{{ANSWER}}", base,
		)}},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("enhance call failed, response not enhanced")
		return base
	}

	enhanced := strings.TrimSpace(resp.Content)
	if enhanced == "" {
		return base
	}
	return enhanced
}

// Keywords extracts the distinct case-folded search terms of text.
func Keywords(text string) []string {
	words := strings.FieldsFunc(cases.Fold().String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]struct{}, len(words))
	var terms []string
	for _, w := range words {
		if utf8.RuneCountInString(w) < minTermRunes {
			continue
		}
		if _, ok := stopWords[w]; ok {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
		if len(terms) == maxQueryTerms {
			break
		}
	}
	return terms
}

func latestInsights(e core.KnowledgeEntry) string {
	insights := e.KnowledgeData.Insights
	if len(insights) == 0 {
		return ""
	}
	text := insights[len(insights)-1].Insights
	if r := []rune(text); len(r) > maxInsightRunes {
		text = string(r[:maxInsightRunes]) + "…"
	}
	return text
}
