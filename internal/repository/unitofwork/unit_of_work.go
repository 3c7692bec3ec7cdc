package unitofwork

import (
	"context"

	"chatmrpt-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatSessionRepository() contract.ChatSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
	AnalysisRunRepository() contract.AnalysisRunRepository
}
