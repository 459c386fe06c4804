package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// geminiAdapter speaks the generateContent shape: turns are {role, parts},
// the assistant role is renamed to "model", and system content lives in the
// system_instruction field.
type geminiAdapter struct {
	cfg    ProviderConfig
	client *http.Client
}

// NewGeminiAdapter creates an adapter for the Gemini generateContent API
func NewGeminiAdapter(cfg ProviderConfig, client *http.Client) ProviderAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &geminiAdapter{cfg: cfg, client: client}
}

func (a *geminiAdapter) Name() string  { return a.cfg.Name }
func (a *geminiAdapter) Model() string { return a.cfg.Model }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"system_instruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  map[string]interface{} `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *geminiAdapter) translate(messages []Message, opts ChatOptions) geminiRequest {
	system, turns := splitSystem(messages)

	var req geminiRequest
	if system != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	for _, m := range turns {
		role := string(m.Role)
		if m.Role == RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	if opts.MaxTokens > 0 || opts.Temperature > 0 {
		req.GenerationConfig = map[string]interface{}{}
		if opts.MaxTokens > 0 {
			req.GenerationConfig["maxOutputTokens"] = opts.MaxTokens
		}
		if opts.Temperature > 0 {
			req.GenerationConfig["temperature"] = opts.Temperature
		}
	}
	return req
}

func (a *geminiAdapter) parse(status int, body []byte) (*CompletionResult, error) {
	if status != http.StatusOK {
		return nil, &ProviderError{Provider: a.cfg.Name, StatusCode: status, Body: string(body)}
	}
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProviderError{Provider: a.cfg.Name, Body: fmt.Sprintf("decoding response: %v", err)}
	}
	if resp.Error != nil {
		return nil, &ProviderError{Provider: a.cfg.Name, StatusCode: status, Body: resp.Error.Message}
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &ProviderError{Provider: a.cfg.Name, StatusCode: status, Body: "no candidates in response"}
	}
	return &CompletionResult{
		Content:    resp.Candidates[0].Content.Parts[0].Text,
		Provider:   a.cfg.Name,
		Model:      a.cfg.Model,
		TokensUsed: resp.UsageMetadata.TotalTokenCount,
	}, nil
}

// Complete performs one chat call against the vendor
func (a *geminiAdapter) Complete(ctx context.Context, messages []Message, opts ChatOptions) (*CompletionResult, error) {
	payload, err := json.Marshal(a.translate(messages, opts))
	if err != nil {
		return nil, &ProviderError{Provider: a.cfg.Name, Body: fmt.Sprintf("encoding request: %v", err)}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", a.cfg.BaseURL, a.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Provider: a.cfg.Name, Body: fmt.Sprintf("creating request: %v", err)}
	}
	setHeaders(req, a.cfg.ExtraHeaders)
	req.Header.Set("x-goog-api-key", a.cfg.APIKey)

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
