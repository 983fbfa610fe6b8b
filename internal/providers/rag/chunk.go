package rag

import (
	"strings"
	"unicode"

	"github.com/sandevgo/tuskchat/pkg/tokenizer"
)

type Chunk struct {
	Text      string
	TokenSize int
	Index     int
}

type ChunkerConfig struct {
	MaxTokens     int
	OverlapTokens int
}

// DefaultChunkerConfig fits the 512-token context of common embedding models.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxTokens:     400,
		OverlapTokens: 50,
	}
}

func ChunkText(text string, cfg ChunkerConfig) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// a token is never shorter than one byte
	if len(text) <= cfg.MaxTokens {
		return []Chunk{{Text: text, TokenSize: tokenizer.Count(text)}}
	}

	sentences := splitSentences(text)

	var (
		chunks        []Chunk
		current       strings.Builder
		currentTokens int
	)
	flush := func() {
		chunks = append(chunks, Chunk{
			Text:      strings.TrimSpace(current.String()),
			TokenSize: currentTokens,
			Index:     len(chunks),
		})
		current.Reset()
		currentTokens = 0
	}

	for i, sentence := range sentences {
		sentenceTokens := tokenizer.Count(sentence)

		// oversized sentence: flush and slice it by tokens
		if sentenceTokens > cfg.MaxTokens {
			if current.Len() > 0 {
				flush()
			}
			for _, part := range tokenizer.Split(sentence, cfg.MaxTokens) {
				current.WriteString(part)
				currentTokens = tokenizer.Count(part)
				flush()
			}
			continue
		}

		if currentTokens+sentenceTokens > cfg.MaxTokens && current.Len() > 0 {
			flush()
			overlap := overlapFromSentences(sentences, i, cfg.OverlapTokens)
			current.WriteString(overlap)
			currentTokens = tokenizer.Count(overlap)
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
		currentTokens += sentenceTokens
	}

	if current.Len() > 0 {
		flush()
	}
	return chunks
}

var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true, '．': true, '…': true,
}

// splitSentences splits paragraphs on terminal punctuation followed by
// whitespace, end of text or a CJK rune.
func splitSentences(text string) []string {
	var sentences []string

	for _, para := range splitParagraphs(text) {
		var current strings.Builder
		runes := []rune(para)

		for i, r := range runes {
			current.WriteRune(r)
			if !sentenceEnders[r] {
				continue
			}
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) || isCJK(runes[i+1]) {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}

		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
	}

	if len(sentences) == 0 && text != "" {
		return []string{text}
	}
	return sentences
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var result []string
	for _, p := range strings.Split(text, "\n\n") {
		// single newlines inside a paragraph are soft wraps
		p = strings.TrimSpace(strings.ReplaceAll(p, "\n", " "))
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func overlapFromSentences(sentences []string, currentIdx int, targetTokens int) string {
	if currentIdx == 0 || targetTokens <= 0 {
		return ""
	}

	var overlap []string
	tokens := 0
	for i := currentIdx - 1; i >= 0 && tokens < targetTokens; i-- {
		overlap = append([]string{sentences[i]}, overlap...)
		tokens += tokenizer.Count(sentences[i])
	}
	return strings.Join(overlap, " ")
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
