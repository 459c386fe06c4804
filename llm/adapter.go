package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ProviderAdapter translates normalized messages into one vendor's wire shape
// and parses the vendor response back into a CompletionResult. Adapters never
// substitute a default completion: every non-success outcome is a
// *ProviderError so the gateway can fail over.
type ProviderAdapter interface {
	// Name returns the unique provider key (e.g. "openai", "anthropic")
	Name() string
	// Model returns the configured model identifier
	Model() string
	// Complete performs one chat call against the vendor
	Complete(ctx context.Context, messages []Message, opts ChatOptions) (*CompletionResult, error)
}

// ProviderError reports a single failed vendor call. StatusCode is 0 when the
// failure happened before an HTTP response was received (transport, timeout).
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("provider %s: %s", e.Provider, e.Body)
	}
	return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.StatusCode, truncate(e.Body, 512))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// splitSystem separates system content from conversational turns. Several
// vendor shapes carry the system instruction outside the turn list, so the
// concrete adapters share this step.
func splitSystem(messages []Message) (system string, turns []Message) {
	var parts []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			parts = append(parts, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(parts, "\n\n"), turns
}

func setHeaders(req *http.Request, extra map[string]string) {
	req.Header.Set("Content-Type", "application/json")
	for k, v := range extra {
		req.Header.Set(k, v)
	}
}
