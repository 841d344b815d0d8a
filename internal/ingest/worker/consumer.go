package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/internal/ingest/handlers"
	"github.com/angelmondragon/payoutledger/internal/ingest/router"
	"github.com/angelmondragon/payoutledger/internal/reports"
	"github.com/angelmondragon/payoutledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
	"github.com/angelmondragon/payoutledger/pkg/logger"
	"github.com/angelmondragon/payoutledger/pkg/metrics"
)

const defaultRetryDelay = time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type decoder interface {
	Decode(kind enums.EventKind, version int, payload []byte) (any, error)
}

// ConsumerParams wires one topic consumer.
type ConsumerParams struct {
	Source     Source
	Router     *router.Router
	Decoder    decoder
	DB         txRunner
	Reporter   reports.Reporter
	Metrics    *metrics.ConsumerMetrics
	Logger     *logger.Logger
	RetryDelay time.Duration
	Now        func() time.Time
}

// Consumer applies batches from one source inside a single store
// transaction, one savepoint per message.
type Consumer struct {
	source     Source
	route      router.Route
	decoder    decoder
	db         txRunner
	reporter   reports.Reporter
	metrics    *metrics.ConsumerMetrics
	logg       *logger.Logger
	retryDelay time.Duration
	now        func() time.Time
}

// NewConsumer resolves the source topic's route and validates dependencies.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Source == nil {
		return nil, errors.New("source required")
	}
	if params.Router == nil {
		return nil, errors.New("router required")
	}
	if params.Decoder == nil {
		return nil, errors.New("decoder required")
	}
	if params.DB == nil {
		return nil, errors.New("tx runner required")
	}
	if params.Reporter == nil {
		return nil, errors.New("reporter required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	route, err := params.Router.Route(params.Source.Topic())
	if err != nil {
		return nil, err
	}
	retryDelay := params.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Consumer{
		source:     params.Source,
		route:      route,
		decoder:    params.Decoder,
		db:         params.DB,
		reporter:   params.Reporter,
		metrics:    params.Metrics,
		logg:       params.Logger,
		retryDelay: retryDelay,
		now:        now,
	}, nil
}

// Topic returns the consumed topic.
func (c *Consumer) Topic() string { return c.source.Topic() }

// Run consumes until ctx is canceled or the source fails.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.source.Close()
	ctx = c.logg.WithFields(ctx, map[string]any{
		"topic":      c.source.Topic(),
		"event_kind": c.route.Kind,
	})
	c.logg.Info(ctx, "consumer started")
	for {
		msgs, err := c.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch %s: %w", c.source.Topic(), err)
		}
		if len(msgs) == 0 {
			continue
		}
		if err := c.ProcessBatch(ctx, msgs); err != nil {
			c.logg.Error(ctx, "batch aborted", err)
			c.source.Abort(ctx, msgs)
			if err := c.wait(ctx); err != nil {
				return err
			}
			continue
		}
		if err := c.source.Commit(ctx, msgs); err != nil {
			c.logg.Error(ctx, "commit failed, batch will be redelivered", err)
			c.source.Abort(ctx, msgs)
		}
	}
}

func (c *Consumer) wait(ctx context.Context) error {
	timer := time.NewTimer(c.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ProcessBatch applies msgs in one transaction. Invalid messages roll back
// their own savepoint and are reported; a retryable failure aborts the whole
// batch and is returned.
func (c *Consumer) ProcessBatch(ctx context.Context, msgs []Message) error {
	topic := c.source.Topic()
	start := c.now()
	outcomes := make([]string, 0, len(msgs))
	err := c.db.WithTx(ctx, func(tx *gorm.DB) error {
		outcomes = outcomes[:0]
		batch := handlers.NewBatch()
		for _, msg := range msgs {
			outcome, err := c.processMessage(ctx, tx, batch, msg)
			if err != nil {
				return err
			}
			outcomes = append(outcomes, outcome)
		}
		return nil
	})
	c.metrics.ObserveBatch(topic, c.now().Sub(start))
	if err != nil {
		for range msgs {
			c.metrics.IncMessage(topic, metrics.OutcomeFailed)
		}
		return err
	}
	for _, outcome := range outcomes {
		c.metrics.IncMessage(topic, outcome)
	}
	return nil
}

func (c *Consumer) processMessage(ctx context.Context, tx *gorm.DB, batch *handlers.Batch, msg Message) (string, error) {
	ctx = c.logg.WithFields(ctx, map[string]any{
		"partition":      msg.Partition,
		"offset":         msg.Offset,
		"message_id":     msg.ID,
		"schema_version": msg.Version,
	})

	var outcome handlers.Outcome
	err := tx.Transaction(func(sp *gorm.DB) error {
		payload, err := c.decoder.Decode(c.route.Kind, msg.Version, msg.Value)
		if err != nil {
			return err
		}
		outcome, err = c.route.Handler.Handle(ctx, sp, batch, payload)
		return err
	})
	if err == nil {
		batch.Commit()
		return string(outcome), nil
	}
	batch.Discard()
	if pkgerrors.IsRetryable(err) {
		return "", err
	}

	details := map[string]any{
		"topic":      msg.Topic,
		"event_kind": c.route.Kind,
		"version":    msg.Version,
		"error_code": pkgerrors.CodeOf(err),
	}
	if typed := pkgerrors.As(err); typed != nil && typed.Details() != nil {
		details["fields"] = typed.Details()
	}
	if rerr := c.reporter.Report(ctx, tx, reports.Report{
		Kind:    enums.ReportKindInvalidEvent,
		Subject: msg.ID,
		Message: err.Error(),
		Details: details,
	}); rerr != nil {
		return "", rerr
	}
	return metrics.OutcomeInvalid, nil
}
