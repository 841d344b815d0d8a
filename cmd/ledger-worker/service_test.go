package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/payoutledger/pkg/logger"
)

type blockingConsumer struct {
	started chan struct{}
}

func (b *blockingConsumer) Run(ctx context.Context) error {
	close(b.started)
	<-ctx.Done()
	return ctx.Err()
}

type failingConsumer struct {
	err error
}

func (f failingConsumer) Run(context.Context) error {
	return f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "ledger-worker-test", Output: io.Discard})
}

func TestServiceStopsOnCancel(t *testing.T) {
	c := &blockingConsumer{started: make(chan struct{})}
	svc, err := NewService(ServiceParams{
		Logger:    testLogger(),
		Consumers: []consumer{c},
		Server:    &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	<-c.started
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestServiceFailsWhenAConsumerFails(t *testing.T) {
	boom := errors.New("fetch vote topic: broker gone")
	blocking := &blockingConsumer{started: make(chan struct{})}
	svc, err := NewService(ServiceParams{
		Logger:    testLogger(),
		Consumers: []consumer{blocking, failingConsumer{err: boom}},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestNewServiceRequiresConsumers(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: testLogger()})
	require.Error(t, err)
}
