package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kadirpekel/worldcore/internal/httpclient"
)

// Anthropic talks to the Claude Messages API.
type Anthropic struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
}

func NewAnthropic(apiKey, baseURL string) *Anthropic {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	return &Anthropic{apiKey: apiKey, baseURL: baseURL, client: httpclient.New(httpclient.WithMaxRetries(3))}
}

func (p *Anthropic) Name() string { return "anthropic" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

type anthropicRequest struct {
	Model       string              `json:"model"`
	System      string              `json:"system,omitempty"`
	Messages    []anthropicMessage  `json:"messages"`
	Tools       []anthropicToolSpec `json:"tools,omitempty"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float64             `json:"temperature,omitempty"`
}

type anthropicContentBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Usage   anthropicUsage          `json:"usage"`
	Error   *anthropicError         `json:"error,omitempty"`
}

type anthropicError struct {
	Message string `json:"message"`
}

// splitSystem pulls leading system-role messages out into Anthropic's
// dedicated system field, since its Messages API has no system role.
func splitSystem(msgs []Message) (string, []anthropicMessage) {
	var system string
	out := make([]anthropicMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "system" {
			if system != "" {
				system += "\n"
			}
			system += m.Content
			continue
		}
		role := m.Role
		if role == "tool" {
			role = "user"
		}
		out = append(out, anthropicMessage{Role: role, Content: m.Content})
	}
	return system, out
}

func (p *Anthropic) Generate(ctx context.Context, req Request) (Response, error) {
	system, messages := splitSystem(req.Messages)
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	body := anthropicRequest{
		Model:       req.Model,
		System:      system,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, anthropicToolSpec{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}

	data, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("llm/anthropic: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(data))
	if err != nil {
		return Response{}, fmt.Errorf("llm/anthropic: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	return WithRetry(ctx, 3, 0, func() (Response, error) {
		resp, err := p.client.Do(httpReq)
		if err != nil {
			return Response{}, fmt.Errorf("llm/anthropic: request failed: %w", err)
		}
		defer resp.Body.Close()

		respData, err := io.ReadAll(resp.Body)
		if err != nil {
			return Response{}, fmt.Errorf("llm/anthropic: reading response: %w", err)
		}
		if resp.StatusCode >= 400 {
			msg := fmt.Sprintf("anthropic returned status %d: %s", resp.StatusCode, string(respData))
			if !ClassifyHTTPStatus(resp.StatusCode) {
				return Response{}, &FatalError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", msg)}
			}
			return Response{}, fmt.Errorf("%s", msg)
		}

		var ar anthropicResponse
		if err := json.Unmarshal(respData, &ar); err != nil {
			return Response{}, fmt.Errorf("llm/anthropic: decoding response: %w", err)
		}
		return fromAnthropicContent(ar), nil
	})
}

func fromAnthropicContent(ar anthropicResponse) Response {
	var text string
	var calls []ToolCall
	sawToolUse := false
	for _, block := range ar.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			sawToolUse = true
			if block.Name == "" {
				continue
			}
			args, _ := json.Marshal(block.Input)
			calls = append(calls, ToolCall{ID: block.ID, Name: block.Name, Arguments: string(args)})
		}
	}
	if sawToolUse {
		return Response{Type: ToolCallResponse, ToolCalls: calls, PromptTokens: ar.Usage.InputTokens, CompletionTokens: ar.Usage.OutputTokens}
	}
	return Response{Type: TextResponse, Content: text, PromptTokens: ar.Usage.InputTokens, CompletionTokens: ar.Usage.OutputTokens}
}

func (p *Anthropic) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	return syntheticStream(ctx, p, req)
}
