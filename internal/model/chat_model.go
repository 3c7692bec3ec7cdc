package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ChatSession struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title        string    `gorm:"type:varchar(200);not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	LastActiveAt time.Time `gorm:"index"`
	UpdatedAt    *time.Time
	DeletedAt    *time.Time
	IsDeleted    bool `gorm:"default:false;index"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

type ChatMessage struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Chat          string    `gorm:"type:text;not null"`
	Role          string    `gorm:"type:varchar(20);not null"`
	Stage         string    `gorm:"type:varchar(50)"`
	ChatSessionId uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	IsDeleted     bool      `gorm:"default:false"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

type AnalysisRun struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ChatSessionId uuid.UUID      `gorm:"type:uuid;index"`
	Workflow      string         `gorm:"type:varchar(50);not null;index"`
	Selections    datatypes.JSON `gorm:"type:jsonb"`
	Summary       string         `gorm:"type:text;not null"`
	Artifacts     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
}

func (AnalysisRun) TableName() string {
	return "analysis_runs"
}
