package contract

import (
	"context"

	"chatmrpt-be/internal/entity"
	"chatmrpt-be/internal/repository/specification"
)

type AnalysisRunRepository interface {
	Create(ctx context.Context, run *entity.AnalysisRun) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AnalysisRun, error)
}
