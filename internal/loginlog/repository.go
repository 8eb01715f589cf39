package loginlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists login logs.
type Repository interface {
	Create(ctx context.Context, entry *LoginLog) error
	ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]LoginLog, int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	FindAllForSync(ctx context.Context, offset, limit int) ([]LoginLog, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, entry *LoginLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create login log: %w", err)
	}
	return nil
}

// ListByUser returns one page of a user's attempts, newest first, and the total count.
func (r *gormRepository) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]LoginLog, int64, error) {
	var (
		logs  []LoginLog
		total int64
	)
	query := r.db.WithContext(ctx).Model(&LoginLog{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count login logs: %w", err)
	}
	if total == 0 {
		return []LoginLog{}, 0, nil
	}
	if err := query.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("list login logs: %w", err)
	}
	return logs, total, nil
}

func (r *gormRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&LoginLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete old login logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// FindAllForSync pages through every row in a stable order.
func (r *gormRepository) FindAllForSync(ctx context.Context, offset, limit int) ([]LoginLog, error) {
	var logs []LoginLog
	err := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Offset(offset).Limit(limit).Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("find login logs for sync: %w", err)
	}
	return logs, nil
}
