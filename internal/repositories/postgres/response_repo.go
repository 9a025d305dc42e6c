package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/lingualab/oralis/internal/models"
)

type ResponseRepo interface {
	Insert(ctx context.Context, row *models.ResponseLog) error
	ListBySession(ctx context.Context, sessionID string) ([]models.ResponseLog, error)
}

type responseRepo struct {
	db *gorm.DB
}

func NewResponseRepo(db *gorm.DB) ResponseRepo {
	return &responseRepo{db: db}
}

func (r *responseRepo) Insert(ctx context.Context, row *models.ResponseLog) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *responseRepo) ListBySession(ctx context.Context, sessionID string) ([]models.ResponseLog, error) {
	var rows []models.ResponseLog
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
