package bootstrap

import (
	"context"
	"log"
	"os"

	"chatmrpt-be/internal/config"
	"chatmrpt-be/internal/constant"
	"chatmrpt-be/internal/controller"
	"chatmrpt-be/internal/handler"
	"chatmrpt-be/internal/pkg/logger"
	"chatmrpt-be/internal/repository/unitofwork"
	"chatmrpt-be/internal/service"
	"chatmrpt-be/internal/websocket"
	"chatmrpt-be/pkg/agent"
	"chatmrpt-be/pkg/dataset"
	"chatmrpt-be/pkg/events"
	"chatmrpt-be/pkg/llm/factory"
	"chatmrpt-be/pkg/sessionstore"
	"chatmrpt-be/pkg/workflow"
	"chatmrpt-be/pkg/workflow/handoff"

	pktNats "chatmrpt-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController    controller.IChatController
	DatasetController controller.IDatasetController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets & Notification
	NotificationHandler *handler.NotificationHandler
	WebSocketHub        *websocket.Hub

	// Exposed for the trace tool and tests.
	Engine *workflow.Engine
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	engineLogger := log.New(os.Stdout, "[WORKFLOW] ", log.LstdFlags)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// Initialize LLM Provider based on Config
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis backs both the workflow state store and cross-instance websocket
	// delivery. Without it the app still runs single-node on memory state.
	var rdb *redis.Client
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb = redis.NewClient(opt)

	var stateStore sessionstore.Store
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Falling back to in-memory workflow state", err)
		rdb = nil
		stateStore = sessionstore.NewMemoryStore()
	} else {
		stateStore = sessionstore.NewRedisStore(rdb)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/notification.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 3. Domain wiring
	datasets := dataset.NewProvider(cfg.App.UploadDir, dataset.NewSchemaCache())

	reasoner := agent.NewLLMAgent(llmProvider, engineLogger)
	handoffRunner := handoff.New(reasoner, datasets, engineLogger).
		WithTimeout(cfg.Agent.HandoffTimeout)

	publisherService := service.NewPublisherService(pubSub, constant.WorkflowEventsTopic)
	var enginePublisher events.Publisher = publisherService
	if natsPub != nil {
		enginePublisher = service.NewFanoutPublisher(publisherService, natsPub)
	}

	engine := workflow.NewEngine(
		stateStore,
		handoffRunner,
		datasets,
		workflow.DefaultWorkflows(datasets),
		engineLogger,
	).WithPublisher(enginePublisher)

	// 4. Services
	chatbotService := service.NewChatbotService(uowFactory, engine, handoffRunner, engineLogger)
	datasetService := service.NewDatasetService(datasets, engineLogger)
	consumerService := service.NewConsumerService(
		pubSub,
		constant.WorkflowEventsTopic,
		uowFactory,
		wsHub,
	)

	// Cross-instance websocket delivery: redis when available, otherwise the
	// NATS relay worker covers it.
	if rdb == nil && natsSub != nil {
		relayService := service.NewRelayService(natsSub, wsHub, wsLogger)
		go relayService.Start()
	}

	notifHandler := handler.NewNotificationHandler(enginePublisher, wsHub, sysLogger)

	return &Container{
		NotificationHandler: notifHandler,
		WebSocketHub:        wsHub,
		ChatController:      controller.NewChatController(chatbotService),
		DatasetController:   controller.NewDatasetController(datasetService),

		ConsumerService: consumerService,
		Engine:          engine,
	}
}
