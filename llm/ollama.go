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

// Ollama talks to a local or remote Ollama server's chat endpoint.
type Ollama struct {
	baseURL string
	client  *httpclient.Client
}

func NewOllama(baseURL string) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Ollama{baseURL: baseURL, client: httpclient.New(httpclient.WithMaxRetries(2))}
}

func (p *Ollama) Name() string { return "ollama" }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (p *Ollama) Generate(ctx context.Context, req Request) (Response, error) {
	messages := make([]ollamaMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}
	body := ollamaRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   false,
		Options:  ollamaOptions{Temperature: req.Temperature},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("llm/ollama: marshaling request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return Response{}, fmt.Errorf("llm/ollama: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return WithRetry(ctx, 2, 0, func() (Response, error) {
		resp, err := p.client.Do(httpReq)
		if err != nil {
			return Response{}, fmt.Errorf("llm/ollama: request failed: %w", err)
		}
		defer resp.Body.Close()
		respData, err := io.ReadAll(resp.Body)
		if err != nil {
			return Response{}, fmt.Errorf("llm/ollama: reading response: %w", err)
		}
		if resp.StatusCode >= 400 {
			msg := fmt.Sprintf("ollama returned status %d: %s", resp.StatusCode, string(respData))
			if !ClassifyHTTPStatus(resp.StatusCode) {
				return Response{}, &FatalError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", msg)}
			}
			return Response{}, fmt.Errorf("%s", msg)
		}
		var or ollamaResponse
		if err := json.Unmarshal(respData, &or); err != nil {
			return Response{}, fmt.Errorf("llm/ollama: decoding response: %w", err)
		}
		return Response{Type: TextResponse, Content: or.Message.Content}, nil
	})
}

func (p *Ollama) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	return syntheticStream(ctx, p, req)
}
