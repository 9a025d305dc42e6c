package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/lingualab/oralis/internal/models"
	"github.com/lingualab/oralis/internal/utils"
)

type ResultRepo interface {
	Insert(ctx context.Context, row *models.EvaluationResult) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.EvaluationResult, error)
}

type resultRepo struct {
	db *gorm.DB
}

func NewResultRepo(db *gorm.DB) ResultRepo {
	return &resultRepo{db: db}
}

func (r *resultRepo) Insert(ctx context.Context, row *models.EvaluationResult) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *resultRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.EvaluationResult, error) {
	var row models.EvaluationResult
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}
