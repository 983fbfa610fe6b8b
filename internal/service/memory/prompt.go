package memory

import (
	"embed"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/sandevgo/tuskchat/internal/core"
)

const DefaultMode = "general"

//go:embed prompts
var prompts embed.FS

var modeName = regexp.MustCompile(`^[a-z0-9_-]+$`)

// SysPrompt builds system prompts from the base prompt and a mode template.
// Files in the runtime path override the built-in templates.
type SysPrompt struct {
	cfg core.PromptConfig
}

func NewSysPrompt(cfg core.PromptConfig) *SysPrompt {
	return &SysPrompt{
		cfg: cfg,
	}
}

// Build returns the system prompt for mode followed by the optional
// augmentation blocks.
func (p *SysPrompt) Build(mode string, blocks ...string) string {
	parts := make([]string, 0, 2+len(blocks))

	if base := p.read(p.cfg.GetSystemPath(), "prompts/system.md"); base != "" {
		parts = append(parts, base)
	}
	if tmpl := p.Mode(mode); tmpl != "" {
		parts = append(parts, tmpl)
	}
	for _, b := range blocks {
		if b = strings.TrimSpace(b); b != "" {
			parts = append(parts, b)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Mode returns the template for mode, or the default one when mode is
// unknown.
func (p *SysPrompt) Mode(mode string) string {
	if !p.HasMode(mode) {
		mode = DefaultMode
	}
	return p.read(filepath.Join(p.cfg.GetModesPath(), mode+".md"), "prompts/modes/"+mode+".md")
}

func (p *SysPrompt) HasMode(mode string) bool {
	return slices.Contains(p.Modes(), mode)
}

// Modes lists built-in and runtime modes, sorted.
func (p *SysPrompt) Modes() []string {
	var modes []string
	if entries, err := prompts.ReadDir("prompts/modes"); err == nil {
		for _, e := range entries {
			modes = append(modes, strings.TrimSuffix(e.Name(), ".md"))
		}
	}
	if entries, err := os.ReadDir(p.cfg.GetModesPath()); err == nil {
		for _, e := range entries {
			name := strings.TrimSuffix(e.Name(), ".md")
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") && modeName.MatchString(name) && !slices.Contains(modes, name) {
				modes = append(modes, name)
			}
		}
	}
	slices.Sort(modes)
	return modes
}

func (p *SysPrompt) read(override, builtin string) string {
	if content, err := os.ReadFile(override); err == nil {
		return strings.TrimSpace(string(content))
	}
	content, err := prompts.ReadFile(builtin)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(content))
}

// WriteDefaults copies the built-in system prompt and mode templates into
// the runtime paths so they can be edited. Existing files are kept.
func WriteDefaults(cfg core.PromptConfig) error {
	if err := writeIfMissing(cfg.GetSystemPath(), "prompts/system.md"); err != nil {
		return err
	}

	entries, err := prompts.ReadDir("prompts/modes")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.GetModesPath(), 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeIfMissing(filepath.Join(cfg.GetModesPath(), e.Name()), "prompts/modes/"+e.Name()); err != nil {
			return err
		}
	}
	return nil
}

func writeIfMissing(dst, builtin string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	data, err := prompts.ReadFile(builtin)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
