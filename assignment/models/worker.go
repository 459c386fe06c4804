package models

import "time"

// Worker tracks one human support agent's availability and capacity. The
// assignment engine is the sole writer of CurrentLoad and must keep
// 0 <= CurrentLoad <= MaxConcurrent under concurrent assignment and
// completion. The auto-increment id doubles as the stable enumeration order
// used for tie-breaking.
type Worker struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Name           string    `json:"name"`
	IsOnDuty       bool      `json:"is_on_duty" gorm:"index"`
	IsActive       bool      `json:"is_active" gorm:"index"`
	MaxConcurrent  int       `json:"max_concurrent"`
	CurrentLoad    int       `json:"current_load"`
	TotalHandled   int       `json:"total_handled"`
	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasCapacity reports whether the worker can take one more conversation
func (w *Worker) HasCapacity() bool {
	return w.IsOnDuty && w.IsActive && w.CurrentLoad < w.MaxConcurrent
}
