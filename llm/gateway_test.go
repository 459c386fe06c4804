package llm

import (
	"context"
	"io"
	"testing"

	"support-desk/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	name  string
	fn    func(messages []Message, opts ChatOptions) (*CompletionResult, error)
	calls int
	seen  []Message
}

func (s *stubAdapter) Name() string  { return s.name }
func (s *stubAdapter) Model() string { return "stub-model" }

func (s *stubAdapter) Complete(_ context.Context, messages []Message, opts ChatOptions) (*CompletionResult, error) {
	s.calls++
	s.seen = messages
	return s.fn(messages, opts)
}

func succeeding(name string) *stubAdapter {
	return &stubAdapter{name: name, fn: func([]Message, ChatOptions) (*CompletionResult, error) {
		return &CompletionResult{Content: "reply from " + name, Provider: name}, nil
	}}
}

func failing(name string) *stubAdapter {
	return &stubAdapter{name: name, fn: func([]Message, ChatOptions) (*CompletionResult, error) {
		return nil, &ProviderError{Provider: name, StatusCode: 500, Body: "boom"}
	}}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

func TestChatNoProviderConfigured(t *testing.T) {
	gw := NewGateway(nil, DefaultGatewayConfig(), testLogger())

	_, err := gw.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, ChatOptions{})
	assert.ErrorIs(t, err, ErrNoProviderConfigured)
}

func TestChatFirstProviderWins(t *testing.T) {
	a, b := succeeding("alpha"), succeeding("beta")
	gw := NewGateway([]ProviderAdapter{a, b}, DefaultGatewayConfig(), testLogger())

	result, err := gw.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "alpha", result.Provider)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 0, b.calls)
}

func TestChatFailsOverInOrder(t *testing.T) {
	a, b, c := failing("alpha"), failing("beta"), succeeding("gamma")
	gw := NewGateway([]ProviderAdapter{a, b, c}, DefaultGatewayConfig(), testLogger())

	result, err := gw.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "gamma", result.Provider)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)
}

func TestChatStickyProviderResumes(t *testing.T) {
	a, b, c := failing("alpha"), failing("beta"), succeeding("gamma")
	gw := NewGateway([]ProviderAdapter{a, b, c}, DefaultGatewayConfig(), testLogger())

	_, err := gw.Chat(context.Background(), []Message{{Role: RoleUser, Content: "first"}}, ChatOptions{})
	require.NoError(t, err)

	// The next call starts at gamma, not alpha
	_, err = gw.Chat(context.Background(), []Message{{Role: RoleUser, Content: "second"}}, ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 2, c.calls)
}

func TestChatAllProvidersFailed(t *testing.T) {
	a, b := failing("alpha"), failing("beta")
	gw := NewGateway([]ProviderAdapter{a, b}, DefaultGatewayConfig(), testLogger())

	_, err := gw.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, ChatOptions{})
	require.Error(t, err)

	var aggregate *AllProvidersFailedError
	require.ErrorAs(t, err, &aggregate)
	require.Len(t, aggregate.Failures, 2)
	assert.Equal(t, "alpha", aggregate.Failures[0].Provider)
	assert.Equal(t, "beta", aggregate.Failures[1].Provider)
	assert.Contains(t, aggregate.Error(), "all 2 providers failed")

	// Each provider was attempted exactly once
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestChatEachProviderAttemptedOncePerCycle(t *testing.T) {
	a := failing("alpha")
	gw := NewGateway([]ProviderAdapter{a}, DefaultGatewayConfig(), testLogger())

	_, err := gw.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, ChatOptions{})
	require.Error(t, err)
	assert.Equal(t, 1, a.calls)
}

func TestChatMergesSystemPrompt(t *testing.T) {
	a := succeeding("alpha")
	gw := NewGateway([]ProviderAdapter{a}, DefaultGatewayConfig(), testLogger())

	_, err := gw.Chat(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}},
		ChatOptions{SystemPrompt: "be helpful"},
	)
	require.NoError(t, err)
	require.Len(t, a.seen, 2)
	assert.Equal(t, RoleSystem, a.seen[0].Role)
	assert.Equal(t, "be helpful", a.seen[0].Content)
	assert.Equal(t, RoleUser, a.seen[1].Role)
}

func TestChatEmptySystemPromptLeavesMessagesUntouched(t *testing.T) {
	a := succeeding("alpha")
	gw := NewGateway([]ProviderAdapter{a}, DefaultGatewayConfig(), testLogger())

	_, err := gw.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, ChatOptions{})
	require.NoError(t, err)
	require.Len(t, a.seen, 1)
	assert.Equal(t, RoleUser, a.seen[0].Role)
}

func TestProviders(t *testing.T) {
	gw := NewGateway([]ProviderAdapter{succeeding("alpha"), succeeding("beta")}, DefaultGatewayConfig(), testLogger())
	assert.Equal(t, []string{"alpha", "beta"}, gw.Providers())
}
