package worker

import (
	"context"
	"errors"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
)

// PubSubVersionAttribute carries the payload schema version.
const PubSubVersionAttribute = "schema_version"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// PubSubSource delivers one message per batch from a subscription. Messages
// are acked on commit and nacked on abort.
type PubSubSource struct {
	topic string
	sub   receiver

	once     sync.Once
	messages chan *pubsub.Message
	done     chan error
}

// NewPubSubSource wraps a subscriber; topic names the route the messages use.
func NewPubSubSource(topic string, sub receiver) (*PubSubSource, error) {
	if topic == "" {
		return nil, errors.New("pubsub topic required")
	}
	if sub == nil {
		return nil, errors.New("pubsub subscription required")
	}
	return &PubSubSource{
		topic:    topic,
		sub:      sub,
		messages: make(chan *pubsub.Message),
		done:     make(chan error, 1),
	}, nil
}

func (s *PubSubSource) Topic() string { return s.topic }

func (s *PubSubSource) start(ctx context.Context) {
	s.once.Do(func() {
		go func() {
			s.done <- s.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
				select {
				case s.messages <- msg:
				case <-ctx.Done():
					msg.Nack()
				}
			})
		}()
	})
}

func (s *PubSubSource) Fetch(ctx context.Context) ([]Message, error) {
	s.start(ctx)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-s.done:
		if err == nil {
			err = errors.New("pubsub receive stopped")
		}
		return nil, err
	case msg := <-s.messages:
		return []Message{{
			ID:      msg.ID,
			Topic:   s.topic,
			Version: parseVersion(msg.Attributes[PubSubVersionAttribute]),
			Value:   msg.Data,
			raw:     msg,
		}}, nil
	}
}

func (s *PubSubSource) Commit(ctx context.Context, msgs []Message) error {
	for _, msg := range msgs {
		if pm, ok := msg.raw.(*pubsub.Message); ok {
			pm.Ack()
		}
	}
	return nil
}

func (s *PubSubSource) Abort(ctx context.Context, msgs []Message) {
	for _, msg := range msgs {
		if pm, ok := msg.raw.(*pubsub.Message); ok {
			pm.Nack()
		}
	}
}

func (s *PubSubSource) Close() error { return nil }
