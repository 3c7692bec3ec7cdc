package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"chatmrpt-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// eventEnvelope is the wire form of an event on the in-process bus.
type eventEnvelope struct {
	Type       string                 `json:"type"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// PublisherService puts workflow events on the in-process watermill bus.
// It implements events.Publisher.
type PublisherService struct {
	pubSub    *gochannel.GoChannel
	topicName string
}

func NewPublisherService(pubSub *gochannel.GoChannel, topicName string) *PublisherService {
	return &PublisherService{pubSub: pubSub, topicName: topicName}
}

func (ps *PublisherService) Publish(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(eventEnvelope{
		Type:       event.EventType(),
		Payload:    event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return ps.pubSub.Publish(ps.topicName, msg)
}

// FanoutPublisher publishes each event to every wired backend. A failure on
// one backend is logged and does not stop the others; the first error is
// returned so callers can still observe total outage.
type FanoutPublisher struct {
	backends []events.Publisher
}

func NewFanoutPublisher(backends ...events.Publisher) *FanoutPublisher {
	return &FanoutPublisher{backends: backends}
}

func (fp *FanoutPublisher) Publish(ctx context.Context, event events.Event) error {
	var firstErr error
	for _, b := range fp.backends {
		if err := b.Publish(ctx, event); err != nil {
			log.Printf("[EVENTS] Publish %s failed on backend %T: %v", event.EventType(), b, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
