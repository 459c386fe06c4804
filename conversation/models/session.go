package models

import (
	"time"
)

// Session status values. waiting and in_progress are live; transferred means
// the conversation is queued for or moving to a human worker; resolved,
// closed and abandoned are terminal.
const (
	StatusWaiting     = "waiting"
	StatusInProgress  = "in_progress"
	StatusTransferred = "transferred"
	StatusResolved    = "resolved"
	StatusClosed      = "closed"
	StatusAbandoned   = "abandoned"
)

// IsTerminal reports whether the status admits no further transitions
func IsTerminal(status string) bool {
	switch status {
	case StatusResolved, StatusClosed, StatusAbandoned:
		return true
	}
	return false
}

// Session represents one end-to-end support conversation from initiation to
// resolution. Sessions are never deleted by the core; archival is external.
type Session struct {
	ID                 string     `json:"id" gorm:"primaryKey"`
	ClientID           string     `json:"client_id" gorm:"index"`
	Status             string     `json:"status" gorm:"index"`
	DesignatedWorkerID *uint      `json:"designated_worker_id,omitempty"`
	ActiveWorkerID     *uint      `json:"active_worker_id,omitempty" gorm:"index"`
	StartedAt          time.Time  `json:"started_at" gorm:"index"`
	AssignedAt         *time.Time `json:"assigned_at,omitempty"`
	FirstResponseAt    *time.Time `json:"first_response_at,omitempty"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
	RatingScore        *int       `json:"rating_score,omitempty"`
	RatingFeedback     string     `json:"rating_feedback,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Transcript message senders
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
	SenderSystem    = "system"
)

// TranscriptMessage is one entry in a session's append-only transcript
type TranscriptMessage struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	SessionID string    `json:"session_id" gorm:"index"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}
