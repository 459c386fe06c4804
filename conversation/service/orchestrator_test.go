package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"support-desk/backend/conversation/models"
	"support-desk/backend/llm"
	apperrors "support-desk/backend/pkg/errors"
	"support-desk/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeSessionRepo is an in-memory SessionRepository for orchestrator tests
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	messages map[string][]models.TranscriptMessage
	nextID   uint
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: make(map[string]*models.Session),
		messages: make(map[string][]models.TranscriptMessage),
	}
}

func (r *fakeSessionRepo) Create(session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *fakeSessionRepo) GetByID(id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) Update(id string, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range fields {
		switch key {
		case "status":
			session.Status = value.(string)
		case "first_response_at":
			t := value.(time.Time)
			session.FirstResponseAt = &t
		case "assigned_at":
			t := value.(time.Time)
			session.AssignedAt = &t
		case "active_worker_id":
			id := value.(uint)
			session.ActiveWorkerID = &id
		}
	}
	return nil
}

func (r *fakeSessionRepo) MarkResolved(id string, score *int, feedback string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if models.IsTerminal(session.Status) {
		return false, nil
	}
	session.Status = models.StatusResolved
	session.ResolvedAt = &at
	if score != nil {
		session.RatingScore = score
		session.RatingFeedback = feedback
	}
	return true, nil
}

func (r *fakeSessionRepo) AppendMessage(message *models.TranscriptMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	message.ID = r.nextID
	r.messages[message.SessionID] = append(r.messages[message.SessionID], *message)
	return nil
}

func (r *fakeSessionRepo) RecentMessages(sessionID string, n int) ([]models.TranscriptMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.messages[sessionID]
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return append([]models.TranscriptMessage(nil), all...), nil
}

func (r *fakeSessionRepo) Messages(sessionID string) ([]models.TranscriptMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.TranscriptMessage(nil), r.messages[sessionID]...), nil
}

func (r *fakeSessionRepo) ListStartedSince(t time.Time) ([]models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Session
	for _, session := range r.sessions {
		if !session.StartedAt.Before(t) {
			out = append(out, *session)
		}
	}
	return out, nil
}

type stubGateway struct {
	calls int
	reply string
	err   error
}

func (g *stubGateway) Chat(_ context.Context, _ []llm.Message, _ llm.ChatOptions) (*llm.CompletionResult, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &llm.CompletionResult{Content: g.reply, Provider: "stub"}, nil
}

type stubAssigner struct {
	calls    int
	workerID uint
	assigned bool
}

func (a *stubAssigner) Assign(_ context.Context, _ string) (uint, bool, error) {
	a.calls++
	return a.workerID, a.assigned, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

func newTestOrchestrator(gateway *stubGateway, assigner *stubAssigner) (*Orchestrator, *fakeSessionRepo) {
	repo := newFakeSessionRepo()
	o := NewOrchestrator(repo, gateway, assigner, DefaultOrchestratorConfig(), testLogger())
	return o, repo
}

func TestStartSession(t *testing.T) {
	o, repo := newTestOrchestrator(&stubGateway{reply: "hi"}, &stubAssigner{})

	session, err := o.StartSession(context.Background(), "client-1", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, models.StatusWaiting, session.Status)

	stored, err := repo.GetByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, "client-1", stored.ClientID)
}

func TestGetSessionNotFound(t *testing.T) {
	o, _ := newTestOrchestrator(&stubGateway{}, &stubAssigner{})

	_, err := o.GetSession(context.Background(), "missing")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SESSION_NOT_FOUND", appErr.Code)
}

func TestHandleMessageAutomatedReply(t *testing.T) {
	gateway := &stubGateway{reply: "refunds take 5 business days"}
	assigner := &stubAssigner{}
	o, repo := newTestOrchestrator(gateway, assigner)

	session, err := o.StartSession(context.Background(), "client-1", nil)
	require.NoError(t, err)

	reply, err := o.HandleMessage(context.Background(), session.ID, "how long do refunds take?", "client-1")
	require.NoError(t, err)
	assert.Equal(t, "refunds take 5 business days", reply)
	assert.Equal(t, 0, assigner.calls)

	updated, _ := repo.GetByID(session.ID)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.NotNil(t, updated.FirstResponseAt)

	messages, _ := repo.Messages(session.ID)
	require.Len(t, messages, 2)
	assert.Equal(t, models.SenderUser, messages[0].Sender)
	assert.Equal(t, models.SenderAssistant, messages[1].Sender)
}

func TestHandleMessageExplicitEscalationSkipsModel(t *testing.T) {
	gateway := &stubGateway{reply: "should not be used"}
	assigner := &stubAssigner{workerID: 7, assigned: true}
	o, repo := newTestOrchestrator(gateway, assigner)

	session, err := o.StartSession(context.Background(), "client-1", nil)
	require.NoError(t, err)

	reply, err := o.HandleMessage(context.Background(), session.ID, "I want to speak to a human", "client-1")
	require.NoError(t, err)
	assert.Equal(t, escalationAck, reply)
	assert.Equal(t, 0, gateway.calls)
	assert.Equal(t, 1, assigner.calls)

	updated, _ := repo.GetByID(session.ID)
	assert.Equal(t, models.StatusTransferred, updated.Status)

	messages, _ := repo.Messages(session.ID)
	require.Len(t, messages, 2)
	assert.Equal(t, models.SenderSystem, messages[1].Sender)
}

func TestHandleMessageModelSuggestedEscalation(t *testing.T) {
	gateway := &stubGateway{reply: "I can't resolve this, you should talk to a human agent."}
	assigner := &stubAssigner{}
	o, repo := newTestOrchestrator(gateway, assigner)

	session, err := o.StartSession(context.Background(), "client-1", nil)
	require.NoError(t, err)

	reply, err := o.HandleMessage(context.Background(), session.ID, "my account is broken", "client-1")
	require.NoError(t, err)
	assert.Contains(t, reply, gateway.reply)
	assert.Contains(t, reply, handoffNotice)
	assert.Equal(t, 1, assigner.calls)

	updated, _ := repo.GetByID(session.ID)
	assert.Equal(t, models.StatusTransferred, updated.Status)
}

func TestHandleMessageGatewayFailureFailsOpen(t *testing.T) {
	gateway := &stubGateway{err: &llm.AllProvidersFailedError{Failures: []llm.ProviderFailure{
		{Provider: "openai", Message: "status 500"},
	}}}
	assigner := &stubAssigner{}
	o, repo := newTestOrchestrator(gateway, assigner)

	session, err := o.StartSession(context.Background(), "client-1", nil)
	require.NoError(t, err)

	reply, err := o.HandleMessage(context.Background(), session.ID, "hello?", "client-1")
	require.NoError(t, err)
	assert.Equal(t, fallbackApology, reply)
	// The raw provider error never reaches the user
	assert.NotContains(t, reply, "500")
	assert.Equal(t, 1, assigner.calls)

	updated, _ := repo.GetByID(session.ID)
	assert.Equal(t, models.StatusTransferred, updated.Status)
}

func TestHandleMessageTerminalSessionRejected(t *testing.T) {
	gateway := &stubGateway{reply: "hi"}
	o, repo := newTestOrchestrator(gateway, &stubAssigner{})

	session, err := o.StartSession(context.Background(), "client-1", nil)
	require.NoError(t, err)
	require.NoError(t, repo.Update(session.ID, map[string]interface{}{"status": models.StatusResolved}))

	_, err = o.HandleMessage(context.Background(), session.ID, "hello again", "client-1")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SESSION_CLOSED", appErr.Code)
	assert.Equal(t, 0, gateway.calls)
}

func TestHandleMessageBoundsContextWindow(t *testing.T) {
	var seen []llm.Message
	gateway := &recordingGateway{reply: "ok", record: func(messages []llm.Message) { seen = messages }}
	repo := newFakeSessionRepo()
	o := NewOrchestrator(repo, gateway, &stubAssigner{}, OrchestratorConfig{ContextWindow: 4}, testLogger())

	session, err := o.StartSession(context.Background(), "client-1", nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := o.HandleMessage(context.Background(), session.ID, "message", "client-1")
		require.NoError(t, err)
	}

	// 4 history entries plus the new message
	assert.Len(t, seen, 5)
}

type recordingGateway struct {
	reply  string
	record func([]llm.Message)
}

func (g *recordingGateway) Chat(_ context.Context, messages []llm.Message, _ llm.ChatOptions) (*llm.CompletionResult, error) {
	g.record(messages)
	return &llm.CompletionResult{Content: g.reply, Provider: "stub"}, nil
}

// brokenHistoryRepo simulates a storage failure on the history read
type brokenHistoryRepo struct {
	*fakeSessionRepo
	readErr error
}

func (r *brokenHistoryRepo) RecentMessages(string, int) ([]models.TranscriptMessage, error) {
	return nil, r.readErr
}

func TestHandleMessageStorageErrorPropagates(t *testing.T) {
	gateway := &stubGateway{reply: "unused"}
	assigner := &stubAssigner{}
	inner := newFakeSessionRepo()
	readErr := errors.New("connection refused")
	repo := &brokenHistoryRepo{fakeSessionRepo: inner, readErr: readErr}
	o := NewOrchestrator(repo, gateway, assigner, DefaultOrchestratorConfig(), testLogger())

	session, err := o.StartSession(context.Background(), "client-1", nil)
	require.NoError(t, err)

	reply, err := o.HandleMessage(context.Background(), session.ID, "how are refunds handled?", "client-1")
	require.ErrorIs(t, err, readErr)
	assert.Empty(t, reply)

	// A storage failure is not a completion failure: no escalation, no
	// apology, no transcript mutation
	assert.Equal(t, 0, assigner.calls)
	messages, _ := inner.Messages(session.ID)
	assert.Empty(t, messages)
	stored, _ := inner.GetByID(session.ID)
	assert.Equal(t, models.StatusWaiting, stored.Status)
}

func TestHandleMessageExcludesSystemRowsFromContext(t *testing.T) {
	var seen []llm.Message
	gateway := &recordingGateway{reply: "ok", record: func(messages []llm.Message) { seen = messages }}
	repo := newFakeSessionRepo()
	o := NewOrchestrator(repo, gateway, &stubAssigner{}, DefaultOrchestratorConfig(), testLogger())

	session, err := o.StartSession(context.Background(), "client-1", nil)
	require.NoError(t, err)

	require.NoError(t, repo.AppendMessage(&models.TranscriptMessage{
		SessionID: session.ID,
		Sender:    models.SenderUser,
		Content:   "earlier question",
		Timestamp: time.Now(),
	}))
	require.NoError(t, repo.AppendMessage(&models.TranscriptMessage{
		SessionID: session.ID,
		Sender:    models.SenderSystem,
		Content:   "You are now connected with a support specialist.",
		Timestamp: time.Now(),
	}))

	_, err = o.HandleMessage(context.Background(), session.ID, "follow-up", "client-1")
	require.NoError(t, err)

	require.Len(t, seen, 2)
	for _, m := range seen {
		assert.NotContains(t, m.Content, "support specialist")
	}
	assert.Equal(t, "earlier question", seen[0].Content)
}

func TestHandleMessageRejectsForeignClient(t *testing.T) {
	gateway := &stubGateway{reply: "unused"}
	o, _ := newTestOrchestrator(gateway, &stubAssigner{})

	session, err := o.StartSession(context.Background(), "client-1", nil)
	require.NoError(t, err)

	_, err = o.HandleMessage(context.Background(), session.ID, "hello", "client-2")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CLIENT_MISMATCH", appErr.Code)
	assert.Equal(t, 0, gateway.calls)
}
