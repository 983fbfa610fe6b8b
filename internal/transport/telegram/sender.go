package telegram

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sandevgo/tuskchat/pkg/conv"
	"github.com/sandevgo/tuskchat/pkg/log"
	tele "gopkg.in/telebot.v3"
)

// maxTelegramMsgLen stays below the 4096 character limit.
const maxTelegramMsgLen = 4000

type sender struct {
	bot *tele.Bot
}

func newSender(bot *tele.Bot) *sender {
	return &sender{bot: bot}
}

// sendMarkdown converts Markdown to Telegram HTML and sends it in chunks.
func (s *sender) sendMarkdown(ctx context.Context, to tele.Recipient, md string, silent bool) error {
	logger := log.FromCtx(ctx)
	html := strings.TrimSpace(conv.MarkdownToTelegramHTML([]byte(md)))
	if html == "" {
		return nil
	}

	for i, chunk := range splitHTML(html, maxTelegramMsgLen) {
		opts := []interface{}{tele.ModeHTML}
		if silent {
			opts = append(opts, tele.Silent)
		}

		if _, err := s.bot.Send(to, chunk, opts...); err != nil {
			logger.Error().Err(err).Int("chunk", i).Int("len", len(chunk)).Msg("failed to send telegram chunk")
			return err
		}
	}
	return nil
}

// splitHTML cuts text into chunks of at most maxLen bytes, preferring
// newlines in the last two thirds of a chunk and never splitting a rune.
func splitHTML(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}

		cut := maxLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if idx := strings.LastIndex(text[:cut], "\n"); idx > maxLen/3 {
			cut = idx
		}

		chunks = append(chunks, text[:cut])
		text = strings.TrimSpace(text[cut:])
	}
	return chunks
}
