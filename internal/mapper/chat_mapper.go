package mapper

import (
	"encoding/json"

	"chatmrpt-be/internal/entity"
	"chatmrpt-be/internal/model"

	"gorm.io/datatypes"
)

// ChatMapper converts between domain entities and gorm models.
type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

func (m *ChatMapper) ChatSessionToModel(e *entity.ChatSession) *model.ChatSession {
	return &model.ChatSession{
		Id:           e.Id,
		Title:        e.Title,
		CreatedAt:    e.CreatedAt,
		LastActiveAt: e.LastActiveAt,
		UpdatedAt:    e.UpdatedAt,
		DeletedAt:    e.DeletedAt,
		IsDeleted:    e.IsDeleted,
	}
}

func (m *ChatMapper) ChatSessionToEntity(mo *model.ChatSession) *entity.ChatSession {
	return &entity.ChatSession{
		Id:           mo.Id,
		Title:        mo.Title,
		CreatedAt:    mo.CreatedAt,
		LastActiveAt: mo.LastActiveAt,
		UpdatedAt:    mo.UpdatedAt,
		DeletedAt:    mo.DeletedAt,
		IsDeleted:    mo.IsDeleted,
	}
}

func (m *ChatMapper) ChatMessageToModel(e *entity.ChatMessage) *model.ChatMessage {
	return &model.ChatMessage{
		Id:            e.Id,
		Chat:          e.Chat,
		Role:          e.Role,
		Stage:         e.Stage,
		ChatSessionId: e.ChatSessionId,
		CreatedAt:     e.CreatedAt,
		IsDeleted:     e.IsDeleted,
	}
}

func (m *ChatMapper) ChatMessageToEntity(mo *model.ChatMessage) *entity.ChatMessage {
	return &entity.ChatMessage{
		Id:            mo.Id,
		Chat:          mo.Chat,
		Role:          mo.Role,
		Stage:         mo.Stage,
		ChatSessionId: mo.ChatSessionId,
		CreatedAt:     mo.CreatedAt,
		IsDeleted:     mo.IsDeleted,
	}
}

func (m *ChatMapper) AnalysisRunToModel(e *entity.AnalysisRun) *model.AnalysisRun {
	selections, _ := json.Marshal(e.Selections)
	artifacts, _ := json.Marshal(e.Artifacts)
	return &model.AnalysisRun{
		Id:            e.Id,
		ChatSessionId: e.ChatSessionId,
		Workflow:      e.Workflow,
		Selections:    datatypes.JSON(selections),
		Summary:       e.Summary,
		Artifacts:     datatypes.JSON(artifacts),
		CreatedAt:     e.CreatedAt,
	}
}

func (m *ChatMapper) AnalysisRunToEntity(mo *model.AnalysisRun) *entity.AnalysisRun {
	e := &entity.AnalysisRun{
		Id:            mo.Id,
		ChatSessionId: mo.ChatSessionId,
		Workflow:      mo.Workflow,
		Summary:       mo.Summary,
		CreatedAt:     mo.CreatedAt,
	}
	_ = json.Unmarshal(mo.Selections, &e.Selections)
	_ = json.Unmarshal(mo.Artifacts, &e.Artifacts)
	return e
}
