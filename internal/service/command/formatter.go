package command

import (
	"fmt"
	"strings"
)

type ResponseFormatter struct{}

func NewResponseFormatter() *ResponseFormatter {
	return &ResponseFormatter{}
}

func (f *ResponseFormatter) Info(title string) string {
	return fmt.Sprintf("⚙️ **%s**\n", title)
}

func (f *ResponseFormatter) Success(message string) string {
	return fmt.Sprintf("✅ **%s**\n", message)
}

func (f *ResponseFormatter) Error(err error) string {
	return fmt.Sprintf("❌ **Command Error**\n\n**Issue**: %s\n", err.Error())
}

func (f *ResponseFormatter) Label(label, value string) string {
	if value == "" {
		value = "default"
	}
	return fmt.Sprintf("**%s**  ›  `%s`\n", label, value)
}

func (f *ResponseFormatter) Usage(command string) string {
	return fmt.Sprintf("**Usage**:\n```%s```\n", command)
}

func (f *ResponseFormatter) Examples(examples []string) string {
	var sb strings.Builder
	sb.WriteString("**Examples**:\n")
	for _, ex := range examples {
		fmt.Fprintf(&sb, "`%s`\n", ex)
	}
	return sb.String()
}

func (f *ResponseFormatter) List(items []string) string {
	var sb strings.Builder
	for _, item := range items {
		fmt.Fprintf(&sb, "› %s\n", item)
	}
	return sb.String()
}

// Entry renders a titled item with an indented, shortened body.
func (f *ResponseFormatter) Entry(title, body string, limit int) string {
	body = strings.Join(strings.Fields(body), " ")
	if r := []rune(body); limit > 0 && len(r) > limit {
		body = string(r[:limit-1]) + "…"
	}
	return fmt.Sprintf("› **%s**\n  %s\n", title, body)
}

func (f *ResponseFormatter) Tip(text string) string {
	return fmt.Sprintf("**Tip**: %s\n", text)
}

func (f *ResponseFormatter) Combine(sections ...string) string {
	return strings.Join(sections, "\n")
}
