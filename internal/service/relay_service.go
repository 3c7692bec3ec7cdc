package service

import (
	"context"
	"strings"

	"chatmrpt-be/internal/pkg/logger"
	internalWS "chatmrpt-be/internal/websocket"
	"chatmrpt-be/pkg/events"
	pktNats "chatmrpt-be/pkg/nats"

	"github.com/google/uuid"
)

// RelayService is the cross-instance delivery worker for redis-less
// deployments. The hub normally fans frames out over the redis cluster
// channel; when redis is down the relay subscribes to the NATS stream with a
// durable consumer so events emitted by any instance still reach the
// websocket clients connected here.
type RelayService struct {
	subscriber *pktNats.Subscriber
	hub        *internalWS.Hub
	logger     logger.ILogger
}

func NewRelayService(sub *pktNats.Subscriber, hub *internalWS.Hub, log logger.ILogger) *RelayService {
	return &RelayService{
		subscriber: sub,
		hub:        hub,
		logger:     log,
	}
}

// Start subscribes to every workflow event subject. Blocking errors are
// logged, not fatal; the node degrades to local-only delivery.
func (s *RelayService) Start() {
	err := s.subscriber.Subscribe("events.>", "workflow-relay-worker", s.handleEvent)
	if err != nil {
		s.logger.Error("RelayService", "Failed to subscribe to event stream", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	s.logger.Info("RelayService", "Relay worker started", nil)
}

func (s *RelayService) handleEvent(ctx context.Context, event events.Event) error {
	payload := event.Payload()

	rawID, ok := payload["session_id"].(string)
	if !ok || rawID == "" {
		// Event carries no session routing; nothing to deliver. Ack by
		// returning nil so the stream does not redeliver it forever.
		return nil
	}
	sessionID, err := uuid.Parse(rawID)
	if err != nil {
		s.logger.Warn("RelayService", "Event carries an unparseable session id", map[string]interface{}{
			"session_id": rawID,
		})
		return nil
	}

	s.hub.SendLocal(sessionID, internalWS.EventMessage{
		Type:      strings.TrimPrefix(event.EventType(), "events."),
		Payload:   payload,
		Timestamp: event.Timestamp(),
	})
	return nil
}
