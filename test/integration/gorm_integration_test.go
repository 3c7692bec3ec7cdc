package integration

import (
	"context"
	"log"
	"os"
	"testing"

	"chatmrpt-be/internal/entity"
	"chatmrpt-be/internal/repository/specification"
	"chatmrpt-be/internal/repository/unitofwork"
	"chatmrpt-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.ChatSessionRepository())
	assert.NotNil(t, uow.ChatMessageRepository())
	assert.NotNil(t, uow.AnalysisRunRepository())

	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)

	t.Run("Session With Messages In Transaction", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()

		sessionId := uuid.New()
		session := &entity.ChatSession{
			Id:    sessionId,
			Title: "Integration Test Session",
		}
		require.NoError(t, uow.ChatSessionRepository().Create(ctx, session))

		userMsg := &entity.ChatMessage{
			Id:            uuid.New(),
			Chat:          "calculate tpr",
			Role:          "user",
			ChatSessionId: sessionId,
		}
		modelMsg := &entity.ChatMessage{
			Id:            uuid.New(),
			Chat:          "Which facility level should be included?",
			Role:          "model",
			Stage:         "AWAITING_FACILITY_LEVEL",
			ChatSessionId: sessionId,
		}
		require.NoError(t, uow.ChatMessageRepository().Create(ctx, userMsg))
		require.NoError(t, uow.ChatMessageRepository().Create(ctx, modelMsg))

		messages, err := uow.ChatMessageRepository().FindAll(ctx,
			specification.BySessionID{SessionID: sessionId},
			specification.OrderByCreatedAt{})
		require.NoError(t, err)
		assert.Len(t, messages, 2)
		assert.Equal(t, "user", messages[0].Role)
		assert.Equal(t, "AWAITING_FACILITY_LEVEL", messages[1].Stage)
	})

	t.Run("Analysis Run With JSON Columns", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()

		sessionId := uuid.New()
		session := &entity.ChatSession{Id: sessionId, Title: "Analysis Run Session"}
		require.NoError(t, uow.ChatSessionRepository().Create(ctx, session))

		run := &entity.AnalysisRun{
			Id:            uuid.New(),
			ChatSessionId: sessionId,
			Workflow:      "tpr",
			Selections:    map[string]string{"facility_level": "primary", "age_group": "pw"},
			Summary:       "TPR analysis complete: overall positivity 30.0%.",
			Artifacts:     []string{"/uploads/" + sessionId.String() + "/tpr_results.csv"},
		}
		require.NoError(t, uow.AnalysisRunRepository().Create(ctx, run))

		runs, err := uow.AnalysisRunRepository().FindAll(ctx,
			specification.BySessionID{SessionID: sessionId},
			specification.ByWorkflow{Workflow: "tpr"})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "primary", runs[0].Selections["facility_level"])
		assert.Len(t, runs[0].Artifacts, 1)
	})
}
