package repository

import (
	"context"

	"approval-ledger/internal/model"

	"gorm.io/gorm"
)

// AuditFilter narrows the audit log listing. Empty fields match everything.
type AuditFilter struct {
	Action   string
	EntityID string
}

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter AuditFilter, page, limit int) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter, page, limit int) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	filtered := func() *gorm.DB {
		query := GetDB(ctx, r.db).Model(&model.AuditLog{})
		if filter.Action != "" {
			query = query.Where("action = ?", filter.Action)
		}
		if filter.EntityID != "" {
			query = query.Where("entity_id = ?", filter.EntityID)
		}
		return query
	}
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := filtered().Preload("User").Order("created_at desc").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
