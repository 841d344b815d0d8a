package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/payoutledger/pkg/config"
	"github.com/angelmondragon/payoutledger/pkg/logger"
)

const (
	dialTimeout = 10 * time.Second
	minBytes    = 1
	maxBytes    = 10 << 20
)

var (
	errNoBrokers = errors.New("kafka brokers are required")
	errNoGroup   = errors.New("kafka consumer group is required")
)

// Client builds consumer-group readers for the configured brokers.
type Client struct {
	brokers   []string
	groupID   string
	clientID  string
	batchWait time.Duration
	dialer    *kafka.Dialer
}

// NewClient validates the broker configuration and checks a broker is reachable.
func NewClient(ctx context.Context, cfg config.BrokerConfig, groupID, clientID string, logg *logger.Logger) (*Client, error) {
	brokers := make([]string, 0, len(cfg.KafkaBrokers))
	for _, broker := range cfg.KafkaBrokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}
	if strings.TrimSpace(groupID) == "" {
		return nil, errNoGroup
	}
	c := &Client{
		brokers:   brokers,
		groupID:   groupID,
		clientID:  clientID,
		batchWait: cfg.BatchWait,
		dialer: &kafka.Dialer{
			ClientID:  clientID,
			Timeout:   dialTimeout,
			DualStack: true,
		},
	}
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"kafka_brokers": strings.Join(brokers, ","),
			"group_id":      groupID,
		}), "kafka client initialized")
	}
	return c, nil
}

// Reader opens a consumer-group reader for topic. Offsets are committed
// explicitly by the caller.
func (c *Client) Reader(topic string) *kafka.Reader {
	maxWait := c.batchWait
	if maxWait <= 0 {
		maxWait = 500 * time.Millisecond
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.brokers,
		GroupID:        c.groupID,
		Topic:          topic,
		Dialer:         c.dialer,
		MinBytes:       minBytes,
		MaxBytes:       maxBytes,
		MaxWait:        maxWait,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
}

// Ping dials the first reachable broker.
func (c *Client) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range c.brokers {
		conn, err := c.dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return nil
	}
	return fmt.Errorf("dial kafka brokers: %w", lastErr)
}
