package llm

// Role identifies who authored a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is the normalized chat message passed to every provider adapter
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatOptions carries per-call tuning for a completion request
type ChatOptions struct {
	// SystemPrompt is merged ahead of any non-system messages before dispatch
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// CompletionResult is the normalized output of a successful provider call.
// It is returned to the caller and never persisted by the gateway itself.
type CompletionResult struct {
	Content    string `json:"content"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used,omitempty"`
}

// ProviderConfig describes one upstream text-generation vendor.
// A provider is enabled iff its credential is present.
type ProviderConfig struct {
	Name         string
	APIKey       string
	BaseURL      string
	Model        string
	ExtraHeaders map[string]string
}

// Enabled reports whether the provider has a credential configured
func (c ProviderConfig) Enabled() bool {
	return c.APIKey != ""
}
