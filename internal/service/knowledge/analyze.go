package knowledge

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/sandevgo/tuskchat/internal/core"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	analysisSystemPrompt = "You are a knowledge curation system. Output only valid JSON."
	maxAnalysisChars     = 24000
	maxTopicRunes        = 48
	defaultConfidence    = 0.5
)

var (
	//go:embed prompt/analyze.md
	analyzePrompt string
	//go:embed prompt/topics.md
	topicsPrompt string
	//go:embed prompt/enhance.md
	enhancePrompt string
)

// Analysis is what one material contributes to the knowledge base.
type Analysis struct {
	Insights   string   `json:"insights"`
	Patterns   []string `json:"patterns"`
	Confidence float64  `json:"confidence"`
	Topics     []string `json:"topics"`
}

func (p *Pipeline) analyze(ctx context.Context, m core.LearningMaterial) (Analysis, error) {
	content := m.Content
	if r := []rune(content); len(r) > maxAnalysisChars {
		content = string(r[:maxAnalysisChars])
	}

	resp, err := p.llm.Chat(ctx, p.provider, core.ChatRequest{
		Model:        p.model,
		SystemPrompt: analysisSystemPrompt,
		Messages: []core.Message{{Role: core.RoleUser, Content: render(analyzePrompt,
			"{{TITLE}}", m.Title,
			"{{TYPE}}", m.MaterialType,
			"{{CONTENT}}", content,
		)}},
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("insight extraction: %w", err)
	}

	a, err := parseAnalysis(resp.Content)
	if err != nil {
		return Analysis{}, err
	}

	resp, err = p.llm.Chat(ctx, p.provider, core.ChatRequest{
		Model:        p.model,
		SystemPrompt: analysisSystemPrompt,
		Messages: []core.Message{{Role: core.RoleUser, Content: render(topicsPrompt,
			"{{LIMIT}}", strconv.Itoa(p.maxTopics),
			"{{TITLE}}", m.Title,
			"{{INSIGHTS}}", a.Insights,
			"{{PATTERNS}}", strings.Join(a.Patterns, "; "),
		)}},
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("topic derivation: %w", err)
	}

	labels, err := parseTopics(resp.Content)
	if err != nil {
		return Analysis{}, err
	}

	a.Topics = NormalizeTopics(labels, p.maxTopics)
	if len(a.Topics) == 0 {
		a.Topics = NormalizeTopics([]string{m.Title}, 1)
	}
	return a, nil
}

func parseAnalysis(content string) (Analysis, error) {
	raw := extractJSON(content, '{', '}')
	if raw == "" {
		return Analysis{}, fmt.Errorf("no JSON object found in analysis response")
	}

	var a Analysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Analysis{}, fmt.Errorf("unmarshal analysis: %w", err)
	}

	a.Insights = strings.TrimSpace(a.Insights)
	if a.Insights == "" && len(a.Patterns) == 0 {
		return Analysis{}, fmt.Errorf("analysis returned no insights")
	}
	switch {
	case a.Confidence <= 0:
		a.Confidence = defaultConfidence
	case a.Confidence > 1:
		a.Confidence = 1
	}
	return a, nil
}

func parseTopics(content string) ([]string, error) {
	raw := extractJSON(content, '[', ']')
	if raw == "" {
		return nil, fmt.Errorf("no JSON array found in topics response")
	}

	var topics []string
	if err := json.Unmarshal([]byte(raw), &topics); err != nil {
		return nil, fmt.Errorf("unmarshal topics: %w", err)
	}
	return topics, nil
}

func extractJSON(content string, open, close byte) string {
	start := strings.IndexByte(content, open)
	if start == -1 {
		return ""
	}
	end := strings.LastIndexByte(content, close)
	if end < start {
		return ""
	}
	return content[start : end+1]
}

// NormalizeTopic maps a label to its topic key: NFKC, case folded, inner
// whitespace collapsed, surrounding punctuation dropped.
func NormalizeTopic(label string) string {
	s := cases.Fold().String(norm.NFKC.String(label))
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if r := []rune(s); len(r) > maxTopicRunes {
		s = strings.TrimSpace(string(r[:maxTopicRunes]))
	}
	return s
}

// NormalizeTopics normalizes labels, drops duplicates and empties and keeps
// at most limit of them.
func NormalizeTopics(labels []string, limit int) []string {
	seen := make(map[string]struct{}, len(labels))
	var out []string
	for _, l := range labels {
		t := NormalizeTopic(l)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func render(tmpl string, pairs ...string) string {
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
