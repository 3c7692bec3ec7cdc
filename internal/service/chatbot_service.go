package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"chatmrpt-be/internal/constant"
	"chatmrpt-be/internal/dto"
	"chatmrpt-be/internal/entity"
	"chatmrpt-be/internal/pkg/serverutils"
	"chatmrpt-be/internal/repository/specification"
	"chatmrpt-be/internal/repository/unitofwork"
	"chatmrpt-be/pkg/store"
	"chatmrpt-be/pkg/workflow"
	"chatmrpt-be/pkg/workflow/handoff"

	"github.com/google/uuid"
)

// IChatbotService defines the chatbot service interface
type IChatbotService interface {
	CreateSession(ctx context.Context) (*dto.CreateSessionResponse, error)
	GetAllSessions(ctx context.Context) ([]*dto.GetAllSessionsResponse, error)
	GetChatHistory(ctx context.Context, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error)
	GetAnalysisRuns(ctx context.Context, sessionId uuid.UUID) ([]*dto.AnalysisRunResponse, error)
	SendChat(ctx context.Context, sessionId uuid.UUID, request *dto.SendChatRequest) (*dto.SendChatResponse, error)
	DeleteSession(ctx context.Context, sessionId uuid.UUID) error
}

// chatbotService routes every inbound message through the workflow engine
// first; messages the engine declines are answered by the reasoning agent.
type chatbotService struct {
	uowFactory unitofwork.RepositoryFactory
	engine     *workflow.Engine
	handoff    *handoff.Handoff
	logger     *log.Logger
}

func NewChatbotService(
	uowFactory unitofwork.RepositoryFactory,
	engine *workflow.Engine,
	h *handoff.Handoff,
	logger *log.Logger,
) IChatbotService {
	return &chatbotService{
		uowFactory: uowFactory,
		engine:     engine,
		handoff:    h,
		logger:     logger,
	}
}

// CreateSession creates a new chat session and issues its bearer token.
func (cs *chatbotService) CreateSession(ctx context.Context) (*dto.CreateSessionResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	now := time.Now()

	chatSession := entity.ChatSession{
		Id:           uuid.New(),
		Title:        "Unnamed session",
		CreatedAt:    now,
		LastActiveAt: now,
	}

	greeting := entity.ChatMessage{
		Id:            uuid.New(),
		Chat:          constant.InitialGreeting,
		Role:          constant.ChatMessageRoleModel,
		Stage:         string(store.StageIdle),
		ChatSessionId: chatSession.Id,
		CreatedAt:     now,
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.ChatSessionRepository().Create(ctx, &chatSession); err != nil {
		return nil, err
	}
	if err := uow.ChatMessageRepository().Create(ctx, &greeting); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	token, err := serverutils.GenerateSessionToken(chatSession.Id)
	if err != nil {
		return nil, err
	}

	return &dto.CreateSessionResponse{Id: chatSession.Id, Token: token}, nil
}

// GetAllSessions retrieves all chat sessions
func (cs *chatbotService) GetAllSessions(ctx context.Context) ([]*dto.GetAllSessionsResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	chatSessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.NotDeleted{},
		specification.OrderByCreatedAt{},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.GetAllSessionsResponse, 0, len(chatSessions))
	for _, s := range chatSessions {
		response = append(response, &dto.GetAllSessionsResponse{
			Id:           s.Id,
			Title:        s.Title,
			CreatedAt:    s.CreatedAt,
			LastActiveAt: s.LastActiveAt,
			UpdatedAt:    s.UpdatedAt,
		})
	}

	return response, nil
}

// GetChatHistory retrieves chat history for a session
func (cs *chatbotService) GetChatHistory(ctx context.Context, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	if _, err := cs.verifySession(ctx, uow, sessionId); err != nil {
		return nil, err
	}

	chatMessages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.OrderByCreatedAt{},
	)
	if err != nil {
		return nil, err
	}

	resp := make([]*dto.GetChatHistoryResponse, 0, len(chatMessages))
	for _, msg := range chatMessages {
		resp = append(resp, &dto.GetChatHistoryResponse{
			Id:        msg.Id,
			Role:      msg.Role,
			Chat:      msg.Chat,
			Stage:     msg.Stage,
			CreatedAt: msg.CreatedAt,
		})
	}

	return resp, nil
}

// GetAnalysisRuns lists the completed analyses of a session, oldest first.
func (cs *chatbotService) GetAnalysisRuns(ctx context.Context, sessionId uuid.UUID) ([]*dto.AnalysisRunResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	if _, err := cs.verifySession(ctx, uow, sessionId); err != nil {
		return nil, err
	}

	runs, err := uow.AnalysisRunRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.OrderByCreatedAt{},
	)
	if err != nil {
		return nil, err
	}

	resp := make([]*dto.AnalysisRunResponse, 0, len(runs))
	for _, r := range runs {
		resp = append(resp, &dto.AnalysisRunResponse{
			Id:        r.Id,
			Workflow:  r.Workflow,
			Summary:   r.Summary,
			Selection: r.Selections,
			CreatedAt: r.CreatedAt,
		})
	}

	return resp, nil
}

// SendChat processes a user message and returns the assistant reply.
func (cs *chatbotService) SendChat(ctx context.Context, sessionId uuid.UUID, request *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	chatSession, err := cs.verifySession(ctx, uow, sessionId)
	if err != nil {
		return nil, err
	}

	existing, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
	)
	if err != nil {
		return nil, err
	}
	updateTitle := len(existing) <= 1 // only the greeting so far

	// The engine owns its own (redis) state; run it before opening the DB
	// transaction so a slow tool never holds a connection.
	reply, stage, selections, success := cs.resolveReply(ctx, sessionId, request.Chat)

	now := time.Now()
	userMessage := entity.ChatMessage{
		Id:            uuid.New(),
		Chat:          request.Chat,
		Role:          constant.ChatMessageRoleUser,
		ChatSessionId: sessionId,
		CreatedAt:     now,
	}
	modelMessage := entity.ChatMessage{
		Id:            uuid.New(),
		Chat:          reply,
		Role:          constant.ChatMessageRoleModel,
		Stage:         stage,
		ChatSessionId: sessionId,
		CreatedAt:     now.Add(1 * time.Millisecond),
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().Create(ctx, &userMessage); err != nil {
		return nil, err
	}
	if err := uow.ChatMessageRepository().Create(ctx, &modelMessage); err != nil {
		return nil, err
	}

	chatSession.LastActiveAt = now
	if updateTitle {
		chatSession.Title = sessionTitle(request.Chat)
	}
	if err := uow.ChatSessionRepository().Update(ctx, chatSession); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	return &dto.SendChatResponse{
		ChatSessionId: sessionId,
		Stage:         stage,
		Selections:    selections,
		Success:       success,
		Sent: &dto.SendChatResponseChat{
			Id:        userMessage.Id,
			Chat:      userMessage.Chat,
			Role:      userMessage.Role,
			CreatedAt: userMessage.CreatedAt,
		},
		Reply: &dto.SendChatResponseChat{
			Id:        modelMessage.Id,
			Chat:      modelMessage.Chat,
			Role:      modelMessage.Role,
			CreatedAt: modelMessage.CreatedAt,
		},
	}, nil
}

// DeleteSession soft-deletes a chat session
func (cs *chatbotService) DeleteSession(ctx context.Context, sessionId uuid.UUID) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	if _, err := cs.verifySession(ctx, uow, sessionId); err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatSessionRepository().Delete(ctx, sessionId); err != nil {
		return err
	}

	return uow.Commit()
}

// resolveReply tries the workflow engine first; a nil engine response means
// the message is a general query answered directly by the reasoning agent.
func (cs *chatbotService) resolveReply(ctx context.Context, sessionId uuid.UUID, text string) (reply, stage string, selections map[string]string, success bool) {
	resp, err := cs.engine.Handle(ctx, sessionId.String(), text)
	if err != nil {
		cs.logger.Printf("[CHAT] Engine error for session %s: %v", sessionId, err)
		return "Something went wrong handling that message. Please try again.", string(store.StageIdle), map[string]string{}, false
	}
	if resp != nil {
		return resp.Message, resp.Stage, resp.Selections, resp.Success
	}

	outcome := cs.handoff.Do(ctx, sessionId.String(), text, store.StageIdle, nil)
	return outcome.Message, string(store.StageIdle), map[string]string{}, true
}

func (cs *chatbotService) verifySession(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID) (*entity.ChatSession, error) {
	sess, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.NotDeleted{},
	)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session not found")
	}
	return sess, nil
}

func sessionTitle(chat string) string {
	const maxTitle = 60
	// Truncate on runes, not bytes, so a multibyte first message cannot leave
	// an invalid UTF-8 title.
	runes := []rune(chat)
	if len(runes) <= maxTitle {
		return chat
	}
	return string(runes[:maxTitle]) + "..."
}
