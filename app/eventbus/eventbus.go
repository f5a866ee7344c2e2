// Package eventbus provides the NATS-backed watermill publisher and
// subscriber the coordinator broadcasts over.
package eventbus

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"
)

// EventBus bundles the publisher and subscriber over one NATS connection
// configuration. The publisher side satisfies message.Publisher directly.
type EventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger
}

// New connects the bus to NATS JetStream. Streams are auto-provisioned per
// topic on first use.
func New(natsURL string, logger *slog.Logger) (*EventBus, error) {
	watermillLogger := watermill.NewSlogLogger(logger)
	marshaler := &wmnats.NATSMarshaler{}
	jsConfig := wmnats.JetStreamConfig{AutoProvision: true}

	publisher, err := wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:       natsURL,
			Marshaler: marshaler,
			NatsOptions: []nc.Option{
				nc.RetryOnFailedConnect(true),
			},
			JetStream: jsConfig,
		},
		watermillLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	subscriber, err := wmnats.NewSubscriber(
		wmnats.SubscriberConfig{
			URL:         natsURL,
			Unmarshaler: marshaler,
			NatsOptions: []nc.Option{
				nc.RetryOnFailedConnect(true),
			},
			JetStream: wmnats.JetStreamConfig{
				AutoProvision: true,
				DurablePrefix: "tenring",
			},
		},
		watermillLogger,
	)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}

	return &EventBus{
		publisher:  publisher,
		subscriber: subscriber,
		logger:     logger,
	}, nil
}

// Publish implements message.Publisher.
func (eb *EventBus) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		if msg.UUID == "" {
			msg.UUID = watermill.NewUUID()
		}
	}
	return eb.publisher.Publish(topic, messages...)
}

// Subscriber exposes the consuming side for router wiring.
func (eb *EventBus) Subscriber() message.Subscriber {
	return eb.subscriber
}

// Close shuts down both sides of the bus.
func (eb *EventBus) Close() error {
	pubErr := eb.publisher.Close()
	subErr := eb.subscriber.Close()
	if pubErr != nil {
		return pubErr
	}
	return subErr
}

var _ message.Publisher = (*EventBus)(nil)
