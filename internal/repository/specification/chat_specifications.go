package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByID filters on the primary key.
type ByID struct {
	ID uuid.UUID
}

func (s ByID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

// BySessionID filters rows belonging to one chat session.
type BySessionID struct {
	SessionID uuid.UUID
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_session_id = ?", s.SessionID)
}

// NotDeleted excludes soft-deleted rows.
type NotDeleted struct{}

func (s NotDeleted) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_deleted = ?", false)
}

// ByWorkflow filters analysis runs by workflow name.
type ByWorkflow struct {
	Workflow string
}

func (s ByWorkflow) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("workflow = ?", s.Workflow)
}

// OrderByCreatedAt orders ascending by creation time.
type OrderByCreatedAt struct{}

func (s OrderByCreatedAt) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}
