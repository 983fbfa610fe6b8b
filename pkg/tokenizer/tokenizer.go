// Package tokenizer counts cl100k_base tokens. When the encoding cannot be
// loaded (it is fetched on first use) every function degrades to a
// character heuristic instead of failing.
package tokenizer

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// CharsPerToken is the heuristic ratio used without an encoding.
const CharsPerToken = 4

var (
	tk     *tiktoken.Tiktoken
	tkOnce sync.Once
)

func encoding() *tiktoken.Tiktoken {
	tkOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tk = enc
		}
	})
	return tk
}

// Available reports whether the real encoding is loaded.
func Available() bool {
	return encoding() != nil
}

func Count(text string) int {
	if text == "" {
		return 0
	}
	if enc := encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return Estimate(text)
}

// Estimate is the heuristic count, rounded up.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// Split cuts text into pieces of at most maxTokens tokens.
func Split(text string, maxTokens int) []string {
	if text == "" || maxTokens <= 0 {
		return nil
	}

	if enc := encoding(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		var out []string
		for i := 0; i < len(tokens); i += maxTokens {
			end := min(i+maxTokens, len(tokens))
			out = append(out, enc.Decode(tokens[i:end]))
		}
		return out
	}

	runes := []rune(text)
	step := maxTokens * CharsPerToken
	var out []string
	for i := 0; i < len(runes); i += step {
		end := min(i+step, len(runes))
		out = append(out, string(runes[i:end]))
	}
	return out
}
