package rag

import (
	"strings"
	"testing"

	"github.com/sandevgo/tuskchat/pkg/tokenizer"
	"github.com/stretchr/testify/assert"
)

func chunkTexts(chunks []Chunk) []string {
	var out []string
	for _, c := range chunks {
		out = append(out, c.Text)
	}
	return out
}

func TestChunkText(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		cfg            ChunkerConfig
		expectedChunks []string
		needsEncoding  bool
	}{
		{
			name:           "Empty input",
			text:           "",
			cfg:            DefaultChunkerConfig(),
			expectedChunks: nil,
		},
		{
			name:           "Whitespace only",
			text:           "   \n\t   ",
			cfg:            DefaultChunkerConfig(),
			expectedChunks: nil,
		},
		{
			name:           "Short text is one chunk",
			text:           "Hello world.\n\nSecond paragraph.",
			cfg:            DefaultChunkerConfig(),
			expectedChunks: []string{"Hello world.\n\nSecond paragraph."},
		},
		{
			name:           "Two sentences fit in one chunk",
			text:           "Hello world. How are you?",
			cfg:            ChunkerConfig{MaxTokens: 10},
			expectedChunks: []string{"Hello world. How are you?"},
			needsEncoding:  true,
		},
		{
			name:           "Split by sentence (No Overlap)",
			text:           "First sentence. Second sentence.",
			cfg:            ChunkerConfig{MaxTokens: 3},
			expectedChunks: []string{"First sentence.", "Second sentence."},
			needsEncoding:  true,
		},
		{
			name: "Split by sentence (With Overlap)",
			text: "Sentence one. Sentence two. Sentence three.",
			cfg:  ChunkerConfig{MaxTokens: 6, OverlapTokens: 3},
			expectedChunks: []string{
				"Sentence one. Sentence two.",
				"Sentence two. Sentence three.",
			},
			needsEncoding: true,
		},
		{
			name:           "Long sentence forced split",
			text:           "One two three four five six.",
			cfg:            ChunkerConfig{MaxTokens: 3},
			expectedChunks: []string{"One two three", "four five six", "."},
			needsEncoding:  true,
		},
		{
			name:           "Paragraph handling",
			text:           "Para one.\n\nPara two.",
			cfg:            ChunkerConfig{MaxTokens: 10},
			expectedChunks: []string{"Para one. Para two."},
			needsEncoding:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.needsEncoding && !tokenizer.Available() {
				t.Skip("cl100k_base encoding not available")
			}
			assert.Equal(t, tt.expectedChunks, chunkTexts(ChunkText(tt.text, tt.cfg)))
		})
	}
}

func TestChunkText_IndexesAndBounds(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 80)
	cfg := ChunkerConfig{MaxTokens: 40, OverlapTokens: 10}

	chunks := ChunkText(text, cfg)
	assert.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.NotEmpty(t, c.Text)
		assert.LessOrEqual(t, c.TokenSize, cfg.MaxTokens+cfg.OverlapTokens+tokenizer.Count("The quick brown fox jumps over the lazy dog."))
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"Hello world. How are you? I am fine.", []string{"Hello world.", "How are you?", "I am fine."}},
		{"你好世界。这是一个测试。", []string{"你好世界。", "这是一个测试。"}},
		{"No terminal punctuation", []string{"No terminal punctuation"}},
		{"Line one\nstill one.\n\nTwo.", []string{"Line one still one.", "Two."}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitSentences(tt.text), tt.text)
	}
}
