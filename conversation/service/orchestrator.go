package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"support-desk/backend/conversation/models"
	"support-desk/backend/conversation/repository"
	"support-desk/backend/llm"
	apperrors "support-desk/backend/pkg/errors"
	"support-desk/backend/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// personaPrompt describes the automated assistant to the completion provider
const personaPrompt = "You are a friendly and professional customer support assistant. " +
	"Answer questions concisely and accurately. If you cannot help with a request, " +
	"or the customer is frustrated, suggest that they talk to a human agent."

// Canned replies for the escalation paths. The raw gateway error is never
// surfaced to the end user.
const (
	escalationAck = "Of course — let me connect you with a member of our support team. " +
		"Please hold on while we find someone to help you."
	handoffNotice   = "I'm connecting you with a human agent who can help you further."
	fallbackApology = "I'm sorry, I'm having trouble answering right now. " +
		"Let me connect you with a member of our support team."
)

// CompletionClient is the completion gateway seam used by the orchestrator
type CompletionClient interface {
	Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (*llm.CompletionResult, error)
}

// Assigner hands a transferred session to the assignment engine
type Assigner interface {
	Assign(ctx context.Context, sessionID string) (uint, bool, error)
}

// OrchestratorConfig tunes the conversation orchestrator
type OrchestratorConfig struct {
	// ContextWindow bounds how many transcript entries accompany a chat call
	ContextWindow int
	MaxTokens     int
	Temperature   float64
}

// DefaultOrchestratorConfig returns the default orchestrator tuning
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{ContextWindow: 10, MaxTokens: 1024, Temperature: 0.7}
}

// Orchestrator owns the escalation state machine of a conversation: it
// detects handoff intent, drives the completion gateway for automated
// replies, and hands transferred sessions to the assignment engine.
type Orchestrator struct {
	sessions repository.SessionRepository
	gateway  CompletionClient
	assigner Assigner
	cfg      OrchestratorConfig
	log      *logger.Logger

	// one lock per live session serializes concurrent messages for the
	// same conversation; unrelated sessions proceed independently
	locks sync.Map
}

// NewOrchestrator creates a conversation orchestrator
func NewOrchestrator(
	sessions repository.SessionRepository,
	gateway CompletionClient,
	assigner Assigner,
	cfg OrchestratorConfig,
	log *logger.Logger,
) *Orchestrator {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = DefaultOrchestratorConfig().ContextWindow
	}
	return &Orchestrator{
		sessions: sessions,
		gateway:  gateway,
		assigner: assigner,
		cfg:      cfg,
		log:      log,
	}
}

// StartSession creates a new conversation in the waiting state. A designated
// worker, when given, is preferred at assignment time.
func (o *Orchestrator) StartSession(ctx context.Context, clientID string, designatedWorkerID *uint) (*models.Session, error) {
	session := &models.Session{
		ID:                 uuid.New().String(),
		ClientID:           clientID,
		Status:             models.StatusWaiting,
		DesignatedWorkerID: designatedWorkerID,
		StartedAt:          time.Now(),
	}
	if err := o.sessions.Create(session); err != nil {
		return nil, err
	}
	o.log.Info("session started", "session_id", session.ID, "client_id", clientID)
	return session, nil
}

// GetSession returns a session by id
func (o *Orchestrator) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := o.sessions.GetByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("SESSION_NOT_FOUND", "session not found")
		}
		return nil, err
	}
	return session, nil
}

// Transcript returns the full ordered transcript of a session
func (o *Orchestrator) Transcript(ctx context.Context, sessionID string) ([]models.TranscriptMessage, error) {
	if _, err := o.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return o.sessions.Messages(sessionID)
}

// HandleMessage processes one inbound client message and returns the reply
// text. Escalation intent (explicit in the message, suggested by the model,
// or forced by a total gateway failure) transfers the session and invokes
// the assignment engine; no conversation is left stuck on a model failure.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, content, clientID string) (string, error) {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if models.IsTerminal(session.Status) {
		return "", apperrors.NewConflictError("SESSION_CLOSED", "session is already "+session.Status)
	}
	if clientID != "" && clientID != session.ClientID {
		return "", apperrors.NewError(http.StatusForbidden, "CLIENT_MISMATCH", "message sender does not own this session")
	}

	// Explicit handoff requests skip the model entirely
	escalate := ContainsEscalationSignal(content)

	var reply string
	var replySender = models.SenderAssistant
	switch {
	case escalate:
		reply = escalationAck
		replySender = models.SenderSystem

	default:
		result, chatErr := o.generateReply(ctx, sessionID, content)
		if chatErr != nil {
			// Only a completion failure falls open to a human; storage
			// errors propagate unchanged.
			if !isCompletionFailure(chatErr) {
				return "", chatErr
			}
			o.log.LogError(chatErr, "completion failed, escalating to human", "session_id", sessionID)
			reply = fallbackApology
			replySender = models.SenderSystem
			escalate = true
			break
		}
		reply = result.Content
		if ContainsEscalationSignal(result.Content) {
			// The model suggested a handoff; keep its reply and notify
			reply = result.Content + "\n\n" + handoffNotice
			escalate = true
		}
	}

	// Only now that the outcome is known does the transcript change, so a
	// cancelled call never leaves a user message without a reply.
	now := time.Now()
	if err := o.sessions.AppendMessage(&models.TranscriptMessage{
		SessionID: sessionID,
		Sender:    models.SenderUser,
		Content:   content,
		Timestamp: now,
	}); err != nil {
		return "", err
	}
	if err := o.sessions.AppendMessage(&models.TranscriptMessage{
		SessionID: sessionID,
		Sender:    replySender,
		Content:   reply,
		Timestamp: now.Add(time.Millisecond),
	}); err != nil {
		return "", err
	}

	fields := map[string]interface{}{}
	if session.FirstResponseAt == nil {
		fields["first_response_at"] = now
	}
	if escalate {
		fields["status"] = models.StatusTransferred
	} else if session.Status == models.StatusWaiting {
		fields["status"] = models.StatusInProgress
	}
	if len(fields) > 0 {
		if err := o.sessions.Update(sessionID, fields); err != nil {
			return "", err
		}
	}

	if escalate {
		if workerID, ok, assignErr := o.assigner.Assign(ctx, sessionID); assignErr != nil {
			o.log.LogError(assignErr, "assignment failed, session stays queued", "session_id", sessionID)
		} else if ok {
			o.log.Info("session transferred to worker", "session_id", sessionID, "worker_id", workerID)
		} else {
			o.log.Info("no worker available, session queued", "session_id", sessionID)
		}
	}

	return reply, nil
}

// generateReply calls the gateway with the persona prompt and a bounded
// window of recent transcript entries plus the new message.
func (o *Orchestrator) generateReply(ctx context.Context, sessionID, content string) (*llm.CompletionResult, error) {
	history, err := o.sessions.RecentMessages(sessionID, o.cfg.ContextWindow)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		// Canned system rows (escalation acks, connection notices) are
		// transcript bookkeeping, not model turns
		if m.Sender == models.SenderSystem {
			continue
		}
		role := llm.RoleAssistant
		if m.Sender == models.SenderUser {
			role = llm.RoleUser
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: content})

	return o.gateway.Chat(ctx, messages, llm.ChatOptions{
		SystemPrompt: personaPrompt,
		MaxTokens:    o.cfg.MaxTokens,
		Temperature:  o.cfg.Temperature,
	})
}

func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	lock, _ := o.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// isCompletionFailure reports whether the error came from the completion
// gateway rather than storage
func isCompletionFailure(err error) bool {
	var allFailed *llm.AllProvidersFailedError
	return errors.Is(err, llm.ErrNoProviderConfigured) || errors.As(err, &allFailed)
}
