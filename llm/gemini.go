package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// Gemini wraps the official google.golang.org/genai SDK, the one
// provider here that does not hand-roll its own HTTP transport.
type Gemini struct {
	client *genai.Client
}

func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm/gemini: creating client: %w", err)
	}
	return &Gemini{client: client}, nil
}

func (p *Gemini) Name() string { return "gemini" }

func toGeminiContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.RoleUser
		if m.Role == "assistant" || m.Role == "model" {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return out
}

func toGeminiTools(tools []ToolSpec) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func (p *Gemini) Generate(ctx context.Context, req Request) (Response, error) {
	var system string
	var rest []Message
	for _, m := range req.Messages {
		if m.Role == "system" {
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
		Tools:       toGeminiTools(req.Tools),
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, toGeminiContents(rest), config)
	if err != nil {
		return Response{}, fmt.Errorf("llm/gemini: generate failed: %w", err)
	}
	return fromGeminiResponse(resp), nil
}

func fromGeminiResponse(resp *genai.GenerateContentResponse) Response {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{Type: TextResponse}
	}
	var text string
	var calls []ToolCall
	for i, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			calls = append(calls, ToolCall{
				ID:        fmt.Sprintf("gemini-call-%d", i),
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})
		}
	}
	if len(calls) > 0 {
		return Response{Type: ToolCallResponse, ToolCalls: calls}
	}
	return Response{Type: TextResponse, Content: text}
}

func (p *Gemini) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	return syntheticStream(ctx, p, req)
}
