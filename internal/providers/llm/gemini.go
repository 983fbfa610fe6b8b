package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/tuskchat/internal/core"
	"google.golang.org/genai"
)

type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini API backend. An empty baseURL uses the
// public endpoint.
func NewGemini(ctx context.Context, apiKey, model, baseURL string) (*Gemini, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Chat(ctx context.Context, req core.ChatRequest) (core.ChatResponse, error) {
	model, contents, config := g.request(req)

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return core.ChatResponse{}, fmt.Errorf("gemini generate failed: %w", err)
	}

	out := core.ChatResponse{Content: resp.Text(), Model: model}
	addGeminiUsage(&out, resp)
	return out, nil
}

func (g *Gemini) Stream(ctx context.Context, req core.ChatRequest, onDelta core.DeltaFunc) (core.ChatResponse, error) {
	model, contents, config := g.request(req)

	out := core.ChatResponse{Model: model}
	var sb strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			return core.ChatResponse{}, fmt.Errorf("gemini stream failed: %w", err)
		}
		if text := resp.Text(); text != "" {
			sb.WriteString(text)
			if err := onDelta(text); err != nil {
				return core.ChatResponse{}, err
			}
		}
		addGeminiUsage(&out, resp)
	}

	out.Content = sb.String()
	return out, nil
}

func (g *Gemini) request(req core.ChatRequest) (string, []*genai.Content, *genai.GenerateContentConfig) {
	model := req.Model
	if model == "" {
		model = g.model
	}

	system, turns := splitSystem(req)
	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := genai.Role(genai.RoleUser)
		if m.Role == core.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, "")
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	return model, contents, config
}

// addGeminiUsage keeps the latest usage report; streams repeat the running
// totals on each chunk.
func addGeminiUsage(out *core.ChatResponse, resp *genai.GenerateContentResponse) {
	if resp == nil || resp.UsageMetadata == nil {
		return
	}
	out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
	out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
}
