package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"support-desk/backend/pkg/logger"
	"support-desk/backend/pkg/resilience"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrNoProviderConfigured is returned when the enabled provider list is empty
var ErrNoProviderConfigured = errors.New("no completion provider configured")

// ProviderFailure records one failed attempt within a chat cycle
type ProviderFailure struct {
	Provider string `json:"provider"`
	Message  string `json:"message"`
}

// AllProvidersFailedError aggregates every failure of one full failover
// cycle, in attempted order.
type AllProvidersFailedError struct {
	Failures []ProviderFailure
}

// Error implements the error interface
func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Provider, f.Message))
	}
	return fmt.Sprintf("all %d providers failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// GatewayConfig holds tuning for the completion gateway
type GatewayConfig struct {
	// CallTimeout bounds each individual provider attempt
	CallTimeout time.Duration
}

// DefaultGatewayConfig returns the default gateway tuning
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{CallTimeout: 30 * time.Second}
}

// Gateway executes chat calls with failover across an ordered list of
// enabled provider adapters. It remembers the last successful provider
// (the sticky index) and starts the next cycle there. The gateway holds no
// conversation state; the sticky index is a hint, last-writer-wins.
type Gateway struct {
	adapters []ProviderAdapter
	breakers []*resilience.CircuitBreaker
	timeout  time.Duration
	log      *logger.Logger

	mu     sync.Mutex
	sticky int

	attempts  metric.Int64Counter
	failovers metric.Int64Counter
}

// NewGateway creates a gateway over the given adapters. The adapter order is
// fixed for the gateway's lifetime. One circuit breaker per provider guards
// repeated failures; breaker policy is the retry/backoff extension point.
func NewGateway(adapters []ProviderAdapter, cfg GatewayConfig, log *logger.Logger) *Gateway {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultGatewayConfig().CallTimeout
	}

	breakers := make([]*resilience.CircuitBreaker, len(adapters))
	for i, a := range adapters {
		breakers[i] = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("llm-"+a.Name()), log)
	}

	meter := otel.Meter("support-desk/llm")
	attempts, _ := meter.Int64Counter("llm_chat_attempts_total",
		metric.WithDescription("Provider attempts per chat call, by provider and outcome"))
	failovers, _ := meter.Int64Counter("llm_chat_failovers_total",
		metric.WithDescription("Chat calls that did not succeed on the first candidate"))

	return &Gateway{
		adapters:  adapters,
		breakers:  breakers,
		timeout:   cfg.CallTimeout,
		log:       log,
		attempts:  attempts,
		failovers: failovers,
	}
}

// Providers returns the names of the enabled providers in gateway order
func (g *Gateway) Providers() []string {
	names := make([]string, len(g.adapters))
	for i, a := range g.adapters {
		names[i] = a.Name()
	}
	return names
}

// Chat runs one completion call, iterating exactly once around the provider
// ring starting at the sticky index. Each provider is attempted exactly once;
// the first success wins and becomes the new sticky position. If every
// provider fails the aggregate error carries all failures in attempted order.
func (g *Gateway) Chat(ctx context.Context, messages []Message, opts ChatOptions) (*CompletionResult, error) {
	k := len(g.adapters)
	if k == 0 {
		return nil, ErrNoProviderConfigured
	}

	msgs := mergeSystemPrompt(messages, opts.SystemPrompt)

	g.mu.Lock()
	start := g.sticky
	g.mu.Unlock()

	failures := make([]ProviderFailure, 0, k)
	for n := 0; n < k; n++ {
		i := (start + n) % k
		adapter := g.adapters[i]

		result, err := g.invoke(ctx, i, msgs, opts)
		if err == nil {
			g.mu.Lock()
			g.sticky = i
			g.mu.Unlock()

			g.attempts.Add(ctx, 1, metric.WithAttributes(
				attribute.String("provider", adapter.Name()),
				attribute.String("outcome", "success"),
			))
			if n > 0 {
				g.failovers.Add(ctx, 1)
			}
			return result, nil
		}

		g.attempts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", adapter.Name()),
			attribute.String("outcome", "failure"),
		))
		g.log.Warn("completion provider failed, trying next",
			"provider", adapter.Name(),
			"attempt", n+1,
			"error", err.Error(),
		)
		failures = append(failures, ProviderFailure{Provider: adapter.Name(), Message: err.Error()})
	}

	return nil, &AllProvidersFailedError{Failures: failures}
}

// invoke runs one provider attempt through its circuit breaker with the
// per-call timeout applied.
func (g *Gateway) invoke(ctx context.Context, i int, messages []Message, opts ChatOptions) (*CompletionResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var result *CompletionResult
	err := g.breakers[i].Execute(func() error {
		res, callErr := g.adapters[i].Complete(callCtx, messages, opts)
		if callErr != nil {
			return callErr
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// mergeSystemPrompt inserts the system prompt ahead of any non-system
// messages. How an adapter represents system content in its wire shape is
// adapter-internal.
func mergeSystemPrompt(messages []Message, prompt string) []Message {
	if prompt == "" {
		return messages
	}
	merged := make([]Message, 0, len(messages)+1)
	merged = append(merged, Message{Role: RoleSystem, Content: prompt})
	merged = append(merged, messages...)
	return merged
}
