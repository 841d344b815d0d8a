package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaVersionHeader carries the payload schema version.
const KafkaVersionHeader = "schema-version"

// KafkaReader is the consumer-group reader surface the source needs.
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource batches messages from one consumer-group reader. Aborting a
// batch reopens the reader so delivery resumes from the last committed offset.
type KafkaSource struct {
	topic     string
	open      func() KafkaReader
	batchSize int
	batchWait time.Duration

	mtx    sync.Mutex
	reader KafkaReader
}

// NewKafkaSource builds a source over readers produced by open.
func NewKafkaSource(topic string, open func() KafkaReader, batchSize int, batchWait time.Duration) (*KafkaSource, error) {
	if topic == "" {
		return nil, errors.New("kafka topic required")
	}
	if open == nil {
		return nil, errors.New("kafka reader factory required")
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	if batchWait <= 0 {
		batchWait = 500 * time.Millisecond
	}
	return &KafkaSource{
		topic:     topic,
		open:      open,
		batchSize: batchSize,
		batchWait: batchWait,
	}, nil
}

func (s *KafkaSource) Topic() string { return s.topic }

func (s *KafkaSource) current() KafkaReader {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.reader == nil {
		s.reader = s.open()
	}
	return s.reader
}

// Fetch blocks for the first message then collects more until the batch is
// full or the batch wait elapses.
func (s *KafkaSource) Fetch(ctx context.Context) ([]Message, error) {
	reader := s.current()
	first, err := reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	msgs := []Message{fromKafka(first)}

	waitCtx, cancel := context.WithTimeout(ctx, s.batchWait)
	defer cancel()
	for len(msgs) < s.batchSize {
		msg, err := reader.FetchMessage(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				break
			}
			return nil, err
		}
		msgs = append(msgs, fromKafka(msg))
	}
	return msgs, nil
}

func (s *KafkaSource) Commit(ctx context.Context, msgs []Message) error {
	raw := make([]kafka.Message, 0, len(msgs))
	for _, msg := range msgs {
		if km, ok := msg.raw.(kafka.Message); ok {
			raw = append(raw, km)
		}
	}
	if len(raw) == 0 {
		return nil
	}
	if err := s.current().CommitMessages(ctx, raw...); err != nil {
		return fmt.Errorf("commit offsets: %w", err)
	}
	return nil
}

func (s *KafkaSource) Abort(ctx context.Context, msgs []Message) {
	_ = s.Close()
}

func (s *KafkaSource) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	s.reader = nil
	return err
}

func fromKafka(msg kafka.Message) Message {
	version := 0
	for _, header := range msg.Headers {
		if header.Key == KafkaVersionHeader {
			version = parseVersion(string(header.Value))
		}
	}
	return Message{
		ID:        fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset),
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Version:   version,
		Value:     msg.Value,
		raw:       msg,
	}
}
