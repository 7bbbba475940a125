package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lunamarket/fulfillment-service/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

type DefaultJobGateRepository struct {
	DB *gorm.DB
}

func NewDefaultJobGateRepository(db *gorm.DB) *DefaultJobGateRepository {
	return &DefaultJobGateRepository{DB: db}
}

// TryPass opens the durable gate for jobName at most once per interval. The
// pass itself is a compare-and-set on next_allowed_at, so concurrent
// instances cannot both run the job.
func (r *DefaultJobGateRepository) TryPass(ctx context.Context, jobName string, now time.Time, interval time.Duration) (bool, time.Time, error) {
	next := now.Add(interval)

	res := r.DB.WithContext(ctx).Model(&models.JobGateModel{}).
		Where("job_name = ? AND next_allowed_at <= ?", jobName, now).
		Updates(map[string]interface{}{
			"next_allowed_at": next,
			"last_run_at":     now,
		})
	if res.Error != nil {
		return false, time.Time{}, res.Error
	}
	if res.RowsAffected == 1 {
		return true, next, nil
	}

	// Either the gate is closed or the row does not exist yet.
	err := r.DB.WithContext(ctx).Create(&models.JobGateModel{
		JobName:       jobName,
		NextAllowedAt: next,
		LastRunAt:     &now,
	}).Error
	if err == nil {
		return true, next, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, time.Time{}, err
	}

	var gate models.JobGateModel
	if err := r.DB.WithContext(ctx).First(&gate, "job_name = ?", jobName).Error; err != nil {
		return false, time.Time{}, err
	}
	return false, gate.NextAllowedAt, nil
}
