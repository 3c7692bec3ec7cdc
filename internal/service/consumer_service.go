package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"chatmrpt-be/internal/entity"
	"chatmrpt-be/internal/repository/unitofwork"
	internalWS "chatmrpt-be/internal/websocket"
	"chatmrpt-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the workflow event bus: completed analyses become
// audit rows and every event is relayed to the session's websocket feed.
type consumerService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	hub        *internalWS.Hub
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	hub *internalWS.Hub,
) IConsumerService {
	return &consumerService{
		pubSub:     pubSub,
		topicName:  topicName,
		uowFactory: uowFactory,
		hub:        hub,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var envelope eventEnvelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		log.Printf("[ERROR] Failed to unmarshal event message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	sessionIDStr, _ := envelope.Payload["session_id"].(string)
	sessionID, err := uuid.Parse(sessionIDStr)
	if err != nil {
		log.Printf("[ERROR] Event %s has no usable session_id: %q", envelope.Type, sessionIDStr)
		msg.Ack()
		return
	}

	if envelope.Type == events.TypeAnalysisCompleted {
		if err := cs.persistAnalysisRun(ctx, sessionID, envelope); err != nil {
			log.Printf("[ERROR] Failed to persist analysis run for session %s: %v", sessionID, err)
			msg.Nack() // Retriable: DB hiccup
			return
		}
	}

	if cs.hub != nil {
		cs.hub.Send(sessionID, internalWS.EventMessage{
			Type:      envelope.Type,
			Payload:   envelope.Payload,
			Timestamp: envelope.OccurredAt,
		})
	}

	msg.Ack()
}

func (cs *consumerService) persistAnalysisRun(ctx context.Context, sessionID uuid.UUID, envelope eventEnvelope) error {
	workflow, _ := envelope.Payload["workflow"].(string)
	summary, _ := envelope.Payload["summary"].(string)

	selections := map[string]string{}
	if raw, ok := envelope.Payload["selections"].(map[string]interface{}); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				selections[k] = s
			}
		}
	}

	var artifacts []string
	if raw, ok := envelope.Payload["artifacts"].([]interface{}); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				artifacts = append(artifacts, s)
			}
		}
	}

	run := entity.AnalysisRun{
		Id:            uuid.New(),
		ChatSessionId: sessionID,
		Workflow:      workflow,
		Selections:    selections,
		Summary:       summary,
		Artifacts:     artifacts,
		CreatedAt:     time.Now(),
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.AnalysisRunRepository().Create(ctx, &run); err != nil {
		return err
	}

	return uow.Commit()
}
