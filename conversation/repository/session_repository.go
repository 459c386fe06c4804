package repository

import (
	"time"

	"support-desk/backend/conversation/models"

	"gorm.io/gorm"
)

// SessionRepository is the persistence seam for conversation sessions and
// their transcripts. Filters are equality/range with sort; the backing store
// is treated as an external document store.
type SessionRepository interface {
	Create(session *models.Session) error
	GetByID(id string) (*models.Session, error)
	Update(id string, fields map[string]interface{}) error
	// MarkResolved performs the non-terminal to resolved transition and
	// reports whether it actually happened, so a second completion is a
	// no-op on worker counters.
	MarkResolved(id string, score *int, feedback string, at time.Time) (bool, error)
	AppendMessage(message *models.TranscriptMessage) error
	// RecentMessages returns the last n transcript entries in
	// chronological order.
	RecentMessages(sessionID string, n int) ([]models.TranscriptMessage, error)
	Messages(sessionID string) ([]models.TranscriptMessage, error)
	ListStartedSince(t time.Time) ([]models.Session, error)
}

// GormSessionRepository implements SessionRepository on PostgreSQL
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a session repository over the given DB
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

func (r *GormSessionRepository) Create(session *models.Session) error {
	return r.db.Create(session).Error
}

func (r *GormSessionRepository) GetByID(id string) (*models.Session, error) {
	var session models.Session
	err := r.db.First(&session, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *GormSessionRepository) Update(id string, fields map[string]interface{}) error {
	return r.db.Model(&models.Session{}).Where("id = ?", id).Updates(fields).Error
}

func (r *GormSessionRepository) MarkResolved(id string, score *int, feedback string, at time.Time) (bool, error) {
	fields := map[string]interface{}{
		"status":      models.StatusResolved,
		"resolved_at": at,
	}
	if score != nil {
		fields["rating_score"] = *score
		fields["rating_feedback"] = feedback
	}

	res := r.db.Model(&models.Session{}).
		Where("id = ? AND status NOT IN ?", id, []string{models.StatusResolved, models.StatusClosed, models.StatusAbandoned}).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormSessionRepository) AppendMessage(message *models.TranscriptMessage) error {
	return r.db.Create(message).Error
}

func (r *GormSessionRepository) RecentMessages(sessionID string, n int) ([]models.TranscriptMessage, error) {
	var messages []models.TranscriptMessage
	err := r.db.Where("session_id = ?", sessionID).
		Order("timestamp DESC").
		Limit(n).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// Restore chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *GormSessionRepository) Messages(sessionID string) ([]models.TranscriptMessage, error) {
	var messages []models.TranscriptMessage
	err := r.db.Where("session_id = ?", sessionID).
		Order("timestamp ASC").
		Find(&messages).Error
	return messages, err
}

func (r *GormSessionRepository) ListStartedSince(t time.Time) ([]models.Session, error) {
	var sessions []models.Session
	err := r.db.Where("started_at >= ?", t).
		Order("started_at ASC").
		Find(&sessions).Error
	return sessions, err
}
