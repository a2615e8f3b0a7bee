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

// OpenAI talks to any OpenAI-chat-completions-compatible endpoint
// (OpenAI itself, Azure OpenAI, or an OpenAI-shaped proxy).
type OpenAI struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
}

// NewOpenAI constructs an OpenAI provider. baseURL defaults to the
// public API when empty.
func NewOpenAI(apiKey, baseURL string) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAI{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  httpclient.New(httpclient.WithMaxRetries(3)),
	}
}

func (p *OpenAI) Name() string { return "openai" }

type openAIMessage struct {
	Role       string              `json:"role"`
	Content    string              `json:"content"`
	Name       string              `json:"name,omitempty"`
	ToolCallID string              `json:"tool_call_id,omitempty"`
	ToolCalls  []openAIToolCallReq `json:"tool_calls,omitempty"`
}

type openAIToolCallReq struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIFunctionSpec `json:"function"`
}

type openAIFunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openAIChatResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func toOpenAIMessages(msgs []Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(msgs))
	for _, m := range msgs {
		om := openAIMessage{Role: m.Role, Content: m.Content, Name: m.Name, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openAIToolCallReq{
				ID:       tc.ID,
				Type:     "function",
				Function: openAIFunctionCall{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		out = append(out, om)
	}
	return out
}

func toOpenAITools(tools []ToolSpec) []openAITool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openAITool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openAITool{
			Type: "function",
			Function: openAIFunctionSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func (p *OpenAI) buildRequest(ctx context.Context, req Request, stream bool) (*http.Request, error) {
	body := openAIChatRequest{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Tools:       toOpenAITools(req.Tools),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llm/openai: marshaling request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("llm/openai: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	return httpReq, nil
}

func (p *OpenAI) Generate(ctx context.Context, req Request) (Response, error) {
	httpReq, err := p.buildRequest(ctx, req, false)
	if err != nil {
		return Response{}, err
	}

	return WithRetry(ctx, 3, 0, func() (Response, error) {
		resp, err := p.client.Do(httpReq)
		if err != nil {
			return Response{}, fmt.Errorf("llm/openai: request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return Response{}, fmt.Errorf("llm/openai: reading response: %w", err)
		}

		if resp.StatusCode >= 400 {
			msg := fmt.Sprintf("openai returned status %d: %s", resp.StatusCode, string(data))
			if !ClassifyHTTPStatus(resp.StatusCode) {
				return Response{}, &FatalError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", msg)}
			}
			return Response{}, fmt.Errorf("%s", msg)
		}

		var chatResp openAIChatResponse
		if err := json.Unmarshal(data, &chatResp); err != nil {
			return Response{}, fmt.Errorf("llm/openai: decoding response: %w", err)
		}
		if len(chatResp.Choices) == 0 {
			return Response{}, fmt.Errorf("llm/openai: empty choices in response")
		}
		return fromOpenAIChoice(chatResp.Choices[0], chatResp.Usage), nil
	})
}

func fromOpenAIChoice(choice openAIChoice, usage openAIUsage) Response {
	if len(choice.Message.ToolCalls) > 0 {
		calls := make([]ToolCall, 0, len(choice.Message.ToolCalls))
		for _, tc := range choice.Message.ToolCalls {
			calls = append(calls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
		}
		return Response{
			Type:             ToolCallResponse,
			ToolCalls:        calls,
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
		}
	}
	return Response{
		Type:             TextResponse,
		Content:          choice.Message.Content,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	}
}

// Stream issues a non-streaming call and replays it as a single final
// chunk. True incremental SSE decoding is provider-specific wire
// parsing that adds no behavior the bus-level sse:start / sse:chunk /
// sse:end framing doesn't already provide at the agentsub layer, so
// every provider here synthesizes its stream from Generate.
func (p *OpenAI) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	return syntheticStream(ctx, p, req)
}
