package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// openaiCompatAdapter speaks the /chat/completions shape shared by OpenAI,
// Groq and other bearer-token vendors. Per-vendor differences are limited to
// the base URL, the credential and optional extra headers.
type openaiCompatAdapter struct {
	cfg    ProviderConfig
	client *http.Client
}

// NewOpenAICompatAdapter creates an adapter for any OpenAI-compatible vendor
func NewOpenAICompatAdapter(cfg ProviderConfig, client *http.Client) ProviderAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &openaiCompatAdapter{cfg: cfg, client: client}
}

func (a *openaiCompatAdapter) Name() string  { return a.cfg.Name }
func (a *openaiCompatAdapter) Model() string { return a.cfg.Model }

type openaiCompatRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiCompatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// translate builds the vendor request body from normalized messages
func (a *openaiCompatAdapter) translate(messages []Message, opts ChatOptions) openaiCompatRequest {
	req := openaiCompatRequest{
		Model:       a.cfg.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openaiMessage{Role: string(m.Role), Content: m.Content})
	}
	return req
}

// parse decodes a vendor response body into a normalized result
func (a *openaiCompatAdapter) parse(status int, body []byte) (*CompletionResult, error) {
	if status != http.StatusOK {
		return nil, &ProviderError{Provider: a.cfg.Name, StatusCode: status, Body: string(body)}
	}
	var resp openaiCompatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProviderError{Provider: a.cfg.Name, Body: fmt.Sprintf("decoding response: %v", err)}
	}
	if resp.Error != nil {
		return nil, &ProviderError{Provider: a.cfg.Name, StatusCode: status, Body: resp.Error.Message}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: a.cfg.Name, StatusCode: status, Body: "no choices in response"}
	}
	return &CompletionResult{
		Content:    resp.Choices[0].Message.Content,
		Provider:   a.cfg.Name,
		Model:      a.cfg.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// Complete performs one chat call against the vendor
func (a *openaiCompatAdapter) Complete(ctx context.Context, messages []Message, opts ChatOptions) (*CompletionResult, error) {
	payload, err := json.Marshal(a.translate(messages, opts))
	if err != nil {
		return nil, &ProviderError{Provider: a.cfg.Name, Body: fmt.Sprintf("encoding request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Provider: a.cfg.Name, Body: fmt.Sprintf("creating request: %v", err)}
	}
	setHeaders(req, a.cfg.ExtraHeaders)
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

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
