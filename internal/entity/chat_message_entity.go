package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	Id            uuid.UUID
	Chat          string
	Role          string
	Stage         string
	ChatSessionId uuid.UUID
	CreatedAt     time.Time
	IsDeleted     bool
}
