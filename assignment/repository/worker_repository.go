package repository

import (
	"time"

	"support-desk/backend/assignment/models"

	"gorm.io/gorm"
)

// WorkerRepository is the persistence seam for worker availability. Reserve
// and Release are the only writers of current_load and each runs as a single
// guarded statement, so two concurrent assignments can never both commit a
// stale load.
type WorkerRepository interface {
	Register(worker *models.Worker) error
	GetByID(id uint) (*models.Worker, error)
	List() ([]models.Worker, error)
	// ListEligible returns on-duty, active workers with spare capacity in
	// registration (id) order.
	ListEligible() ([]models.Worker, error)
	SetDuty(id uint, onDuty bool) error
	// Reserve atomically takes one capacity slot; it reports false when
	// the worker is off duty, inactive or already at capacity.
	Reserve(id uint) (bool, error)
	// Release returns one capacity slot with a floor of zero and counts
	// the handled conversation.
	Release(id uint) error
}

// GormWorkerRepository implements WorkerRepository on PostgreSQL
type GormWorkerRepository struct {
	db *gorm.DB
}

// NewGormWorkerRepository creates a worker repository over the given DB
func NewGormWorkerRepository(db *gorm.DB) *GormWorkerRepository {
	return &GormWorkerRepository{db: db}
}

func (r *GormWorkerRepository) Register(worker *models.Worker) error {
	return r.db.Create(worker).Error
}

func (r *GormWorkerRepository) GetByID(id uint) (*models.Worker, error) {
	var worker models.Worker
	err := r.db.First(&worker, id).Error
	if err != nil {
		return nil, err
	}
	return &worker, nil
}

func (r *GormWorkerRepository) List() ([]models.Worker, error) {
	var workers []models.Worker
	err := r.db.Order("id ASC").Find(&workers).Error
	return workers, err
}

func (r *GormWorkerRepository) ListEligible() ([]models.Worker, error) {
	var workers []models.Worker
	err := r.db.
		Where("is_on_duty = ? AND is_active = ? AND current_load < max_concurrent", true, true).
		Order("id ASC").
		Find(&workers).Error
	return workers, err
}

func (r *GormWorkerRepository) SetDuty(id uint, onDuty bool) error {
	res := r.db.Model(&models.Worker{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_on_duty":       onDuty,
		"last_activity_at": time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Reserve is a compare-and-swap: the capacity guard lives in the WHERE
// clause so the increment only commits against a fresh load value.
func (r *GormWorkerRepository) Reserve(id uint) (bool, error) {
	res := r.db.Model(&models.Worker{}).
		Where("id = ? AND is_on_duty = ? AND is_active = ? AND current_load < max_concurrent", id, true, true).
		Updates(map[string]interface{}{
			"current_load":     gorm.Expr("current_load + 1"),
			"last_activity_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormWorkerRepository) Release(id uint) error {
	return r.db.Model(&models.Worker{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_load":     gorm.Expr("GREATEST(current_load - 1, 0)"),
			"total_handled":    gorm.Expr("total_handled + 1"),
			"last_activity_at": time.Now(),
		}).Error
}
