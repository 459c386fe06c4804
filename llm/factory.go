package llm

import (
	"context"
	"net/http"

	"support-desk/backend/pkg/config"
	"support-desk/backend/pkg/logger"
	"support-desk/backend/pkg/secrets"
)

// BuildAdapters constructs one adapter per provider whose credential
// resolves, in the configured order. Credentials come from the secrets
// manager (Vault when enabled, environment otherwise); a provider with no
// credential is simply disabled, not an error.
func BuildAdapters(ctx context.Context, cfg *config.Config, sec secrets.Manager, log *logger.Logger) []ProviderAdapter {
	client := &http.Client{Timeout: cfg.Chat.CallTimeout}

	var adapters []ProviderAdapter
	for _, name := range cfg.Providers.Order {
		settings, ok := cfg.Settings(name)
		if !ok {
			log.Warn("unknown provider in order list, skipping", "provider", name)
			continue
		}

		pc := ProviderConfig{
			Name:         name,
			APIKey:       sec.GetSecretWithDefault(ctx, settings.CredentialKey, ""),
			BaseURL:      settings.BaseURL,
			Model:        settings.Model,
			ExtraHeaders: settings.ExtraHeaders,
		}
		if !pc.Enabled() {
			log.Info("completion provider disabled, credential not present", "provider", name)
			continue
		}

		switch name {
		case "anthropic":
			adapters = append(adapters, NewAnthropicAdapter(pc, client))
		case "gemini":
			adapters = append(adapters, NewGeminiAdapter(pc, client))
		default:
			adapters = append(adapters, NewOpenAICompatAdapter(pc, client))
		}
		log.Info("completion provider enabled", "provider", name, "model", pc.Model)
	}
	return adapters
}
