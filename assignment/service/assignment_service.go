package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"support-desk/backend/assignment/models"
	"support-desk/backend/assignment/repository"
	convmodels "support-desk/backend/conversation/models"
	convrepo "support-desk/backend/conversation/repository"
	apperrors "support-desk/backend/pkg/errors"
	"support-desk/backend/pkg/logger"

	"gorm.io/gorm"
)

const connectedNotice = "You are now connected with a support specialist. " +
	"They have the conversation so far and will take it from here."

// Rating carries an optional satisfaction score for a completed session
type Rating struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback,omitempty"`
}

// Engine routes transferred conversations to human workers under per-worker
// concurrency caps, and returns capacity when a conversation completes.
type Engine struct {
	workers  repository.WorkerRepository
	sessions convrepo.SessionRepository
	log      *logger.Logger
}

// NewEngine creates an assignment engine
func NewEngine(workers repository.WorkerRepository, sessions convrepo.SessionRepository, log *logger.Logger) *Engine {
	return &Engine{workers: workers, sessions: sessions, log: log}
}

// Assign selects a worker for the session: the designated worker when one is
// set and has capacity, otherwise the least-loaded eligible worker with ties
// broken by registration order. No qualifying worker is not an error; the
// session simply stays queued. Returns the worker id and whether a worker
// was attached.
func (e *Engine) Assign(ctx context.Context, sessionID string) (uint, bool, error) {
	session, err := e.sessions.GetByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, apperrors.NewNotFoundError("SESSION_NOT_FOUND", "session not found")
		}
		return 0, false, err
	}
	if session.ActiveWorkerID != nil {
		// Already handled by someone
		return *session.ActiveWorkerID, true, nil
	}
	if convmodels.IsTerminal(session.Status) {
		return 0, false, apperrors.NewConflictError("SESSION_CLOSED", "session is already "+session.Status)
	}

	if session.DesignatedWorkerID != nil {
		ok, err := e.workers.Reserve(*session.DesignatedWorkerID)
		if err != nil {
			return 0, false, err
		}
		if ok {
			if err := e.attach(sessionID, *session.DesignatedWorkerID); err != nil {
				return 0, false, err
			}
			return *session.DesignatedWorkerID, true, nil
		}
		e.log.Info("designated worker unavailable, falling back to pool",
			"session_id", sessionID,
			"worker_id", *session.DesignatedWorkerID,
		)
	}

	candidates, err := e.workers.ListEligible()
	if err != nil {
		return 0, false, err
	}

	// Stable selection: scan in registration order, first minimum wins,
	// then retry down the list when a reservation races away.
	ordered := byLoad(candidates)
	for _, worker := range ordered {
		ok, err := e.workers.Reserve(worker.ID)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			continue
		}
		if err := e.attach(sessionID, worker.ID); err != nil {
			return 0, false, err
		}
		return worker.ID, true, nil
	}

	e.log.Info("no worker with spare capacity, session stays queued", "session_id", sessionID)
	return 0, false, nil
}

// attach records the assignment on the session and announces the handoff in
// the transcript.
func (e *Engine) attach(sessionID string, workerID uint) error {
	now := time.Now()
	if err := e.sessions.Update(sessionID, map[string]interface{}{
		"active_worker_id": workerID,
		"assigned_at":      now,
		"status":           convmodels.StatusInProgress,
	}); err != nil {
		return err
	}
	if err := e.sessions.AppendMessage(&convmodels.TranscriptMessage{
		SessionID: sessionID,
		Sender:    convmodels.SenderSystem,
		Content:   connectedNotice,
		Timestamp: now,
	}); err != nil {
		return err
	}
	e.log.Info("worker assigned", "session_id", sessionID, "worker_id", workerID)
	return nil
}

// Complete resolves a session and returns its worker's capacity slot. The
// resolved transition is conditional, so calling Complete twice leaves the
// worker counters untouched on the second call.
func (e *Engine) Complete(ctx context.Context, sessionID string, rating *Rating) error {
	session, err := e.sessions.GetByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFoundError("SESSION_NOT_FOUND", "session not found")
		}
		return err
	}

	var score *int
	var feedback string
	if rating != nil {
		if rating.Score < 1 || rating.Score > 5 {
			return apperrors.NewBadRequestError("INVALID_RATING", "rating score must be between 1 and 5")
		}
		score = &rating.Score
		feedback = rating.Feedback
	}

	transitioned, err := e.sessions.MarkResolved(sessionID, score, feedback, time.Now())
	if err != nil {
		return err
	}
	if !transitioned {
		// Already terminal; counters stay as they are
		return nil
	}

	if session.ActiveWorkerID != nil {
		if err := e.workers.Release(*session.ActiveWorkerID); err != nil {
			return err
		}
	}
	e.log.Info("session resolved", "session_id", sessionID)
	return nil
}

// byLoad orders workers by ascending current load, keeping the incoming
// (registration) order among equals.
func byLoad(workers []models.Worker) []models.Worker {
	ordered := make([]models.Worker, len(workers))
	copy(ordered, workers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CurrentLoad < ordered[j].CurrentLoad
	})
	return ordered
}
