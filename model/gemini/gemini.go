// Package gemini provides a model.Model backed by the Google Gemini API via
// google.golang.org/genai.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/finmesh/core"
	"github.com/hupe1980/finmesh/model"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// Options configures the Gemini model adapter.
type Options struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	APIKey          string // falls back to GEMINI_API_KEY / GOOGLE_API_KEY when empty
}

// contentGenerator is the subset of *genai.Models used by the adapter.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Model wraps the Gemini generateContent API behind model.Model.
type Model struct {
	models contentGenerator
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:           DefaultModel,
		Temperature:     0.7,
		MaxOutputTokens: 4096,
	}
}

// NewModel creates a Gemini model using the Gemini API backend.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Model{models: client.Models, opts: opts}, nil
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{models: client.Models, opts: opts}
}

// Generate implements model.Model with a single generateContent call.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := m.models.GenerateContent(ctx, m.opts.Model, buildContents(req.Contents), m.buildConfig(req))
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}

		r, err := toResponse(resp)
		if err != nil {
			errCh <- err
			return
		}

		out <- r
	}()

	return out, errCh
}

func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(m.opts.Temperature),
		MaxOutputTokens: m.opts.MaxOutputTokens,
	}

	var system string
	for _, c := range req.Contents {
		if c.Role == core.RoleSystem {
			system += c.Text()
		}
	}
	if system == "" {
		system = req.Instructions
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Function.Name,
				Description:          t.Function.Description,
				ParametersJsonSchema: t.Function.Parameters,
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}

		if req.ToolChoice == model.ToolChoiceNone {
			cfg.ToolConfig = &genai.ToolConfig{
				FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeNone},
			}
		}
	}

	return cfg
}

// buildContents maps conversation contents onto Gemini roles. Tool responses
// travel as FunctionResponse parts in a user turn; the JSON string produced by
// the tool is decoded into the response map when possible.
func buildContents(contents []core.Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(contents))

	for _, c := range contents {
		switch c.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			gc := &genai.Content{Role: genai.RoleModel}
			for _, p := range c.Parts {
				switch part := p.(type) {
				case core.TextPart:
					if part.Text != "" {
						gc.Parts = append(gc.Parts, &genai.Part{Text: part.Text})
					}
				case core.FunctionCallPart:
					args := map[string]any{}
					if part.FunctionCall.Arguments != "" {
						_ = json.Unmarshal([]byte(part.FunctionCall.Arguments), &args)
					}
					gc.Parts = append(gc.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
						ID:   part.FunctionCall.ID,
						Name: part.FunctionCall.Name,
						Args: args,
					}})
				}
			}
			if len(gc.Parts) > 0 {
				out = append(out, gc)
			}
		case core.RoleTool:
			gc := &genai.Content{Role: genai.RoleUser}
			for _, fr := range c.FunctionResponses() {
				var payload map[string]any
				if err := json.Unmarshal([]byte(fr.Response), &payload); err != nil {
					payload = map[string]any{"output": fr.Response}
				}
				gc.Parts = append(gc.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       fr.ID,
					Name:     fr.Name,
					Response: payload,
				}})
			}
			if len(gc.Parts) > 0 {
				out = append(out, gc)
			}
		default:
			if text := c.Text(); text != "" {
				out = append(out, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: text}}})
			}
		}
	}

	return out
}

func toResponse(resp *genai.GenerateContentResponse) (model.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return model.Response{}, fmt.Errorf("gemini api error: no candidates returned")
	}

	cand := resp.Candidates[0]

	var parts []core.Part
	for _, p := range cand.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			args := "{}"
			if p.FunctionCall.Args != nil {
				if raw, err := json.Marshal(p.FunctionCall.Args); err == nil {
					args = string(raw)
				}
			}
			id := p.FunctionCall.ID
			if id == "" {
				// Gemini API calls usually carry no id; responses are matched by position.
				id = core.NewID()
			}
			parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        id,
				Name:      p.FunctionCall.Name,
				Arguments: args,
			}})
		case p.Text != "" && !p.Thought:
			parts = append(parts, core.TextPart{Text: p.Text})
		}
	}

	r := model.Response{
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: string(cand.FinishReason),
	}

	if u := resp.UsageMetadata; u != nil {
		r.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	return r, nil
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}
