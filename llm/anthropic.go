package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const anthropicVersion = "2023-06-01"

// defaultMaxTokens applies when the caller did not set one; the Anthropic
// shape rejects requests without a max_tokens value.
const defaultMaxTokens = 1024

// anthropicAdapter speaks the Anthropic messages shape: the system
// instruction travels in a dedicated top-level field, the turn list holds
// only user/assistant entries, and auth uses the x-api-key header.
type anthropicAdapter struct {
	cfg    ProviderConfig
	client *http.Client
}

// NewAnthropicAdapter creates an adapter for the Anthropic messages API
func NewAnthropicAdapter(cfg ProviderConfig, client *http.Client) ProviderAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	return &anthropicAdapter{cfg: cfg, client: client}
}

func (a *anthropicAdapter) Name() string  { return a.cfg.Name }
func (a *anthropicAdapter) Model() string { return a.cfg.Model }

type anthropicRequest struct {
	Model     string          `json:"model"`
	System    string          `json:"system,omitempty"`
	Messages  []openaiMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *anthropicAdapter) translate(messages []Message, opts ChatOptions) anthropicRequest {
	system, turns := splitSystem(messages)
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	req := anthropicRequest{
		Model:     a.cfg.Model,
		System:    system,
		MaxTokens: maxTokens,
	}
	for _, m := range turns {
		req.Messages = append(req.Messages, openaiMessage{Role: string(m.Role), Content: m.Content})
	}
	return req
}

func (a *anthropicAdapter) parse(status int, body []byte) (*CompletionResult, error) {
	if status != http.StatusOK {
		return nil, &ProviderError{Provider: a.cfg.Name, StatusCode: status, Body: string(body)}
	}
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProviderError{Provider: a.cfg.Name, Body: fmt.Sprintf("decoding response: %v", err)}
	}
	if resp.Error != nil {
		return nil, &ProviderError{Provider: a.cfg.Name, StatusCode: status, Body: resp.Error.Message}
	}
	if len(resp.Content) == 0 {
		return nil, &ProviderError{Provider: a.cfg.Name, StatusCode: status, Body: "empty content in response"}
	}
	return &CompletionResult{
		Content:    resp.Content[0].Text,
		Provider:   a.cfg.Name,
		Model:      a.cfg.Model,
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

// Complete performs one chat call against the vendor
func (a *anthropicAdapter) Complete(ctx context.Context, messages []Message, opts ChatOptions) (*CompletionResult, error) {
	payload, err := json.Marshal(a.translate(messages, opts))
	if err != nil {
		return nil, &ProviderError{Provider: a.cfg.Name, Body: fmt.Sprintf("encoding request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Provider: a.cfg.Name, Body: fmt.Sprintf("creating request: %v", err)}
	}
	setHeaders(req, a.cfg.ExtraHeaders)
	req.Header.Set("x-api-key", a.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: a.cfg.Name, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: a.cfg.Name, Body: fmt.Sprintf("reading response: %v", err)}
	}

	return a.parse(resp.StatusCode, body)
}
