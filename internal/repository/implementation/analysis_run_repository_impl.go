package implementation

import (
	"context"

	"chatmrpt-be/internal/entity"
	"chatmrpt-be/internal/mapper"
	"chatmrpt-be/internal/model"
	"chatmrpt-be/internal/repository/contract"
	"chatmrpt-be/internal/repository/specification"

	"gorm.io/gorm"
)

type AnalysisRunRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewAnalysisRunRepository(db *gorm.DB) contract.AnalysisRunRepository {
	return &AnalysisRunRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *AnalysisRunRepositoryImpl) Create(ctx context.Context, run *entity.AnalysisRun) error {
	m := r.mapper.AnalysisRunToModel(run)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*run = *r.mapper.AnalysisRunToEntity(m)
	return nil
}

func (r *AnalysisRunRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AnalysisRun, error) {
	var models []model.AnalysisRun
	db := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := db.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.AnalysisRun, len(models))
	for i := range models {
		out[i] = r.mapper.AnalysisRunToEntity(&models[i])
	}
	return out, nil
}
