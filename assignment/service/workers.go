package service

import (
	"context"
	"errors"
	"time"

	"support-desk/backend/assignment/models"
	apperrors "support-desk/backend/pkg/errors"

	"gorm.io/gorm"
)

// RegisterWorker puts a worker on duty with the given concurrency cap
func (e *Engine) RegisterWorker(ctx context.Context, name string, maxConcurrent int) (*models.Worker, error) {
	if maxConcurrent < 1 {
		return nil, apperrors.NewBadRequestError("INVALID_CAPACITY", "max_concurrent must be at least 1")
	}
	worker := &models.Worker{
		Name:           name,
		IsOnDuty:       true,
		IsActive:       true,
		MaxConcurrent:  maxConcurrent,
		LastActivityAt: time.Now(),
	}
	if err := e.workers.Register(worker); err != nil {
		return nil, err
	}
	e.log.Info("worker registered", "worker_id", worker.ID, "max_concurrent", maxConcurrent)
	return worker, nil
}

// SetWorkerDuty toggles whether a worker receives new conversations.
// Conversations already in flight keep their worker.
func (e *Engine) SetWorkerDuty(ctx context.Context, workerID uint, onDuty bool) error {
	if err := e.workers.SetDuty(workerID, onDuty); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFoundError("WORKER_NOT_FOUND", "worker not found")
		}
		return err
	}
	return nil
}

// ListWorkers returns all registered workers in registration order
func (e *Engine) ListWorkers(ctx context.Context) ([]models.Worker, error) {
	return e.workers.List()
}
