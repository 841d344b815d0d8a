package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/payoutledger/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

type consumer interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger          *logger.Logger
	Consumers       []consumer
	Server          *http.Server
	ShutdownTimeout time.Duration
}

// Service runs every topic consumer plus the ops server and stops them all
// when one fails or the context ends.
type Service struct {
	logg            *logger.Logger
	consumers       []consumer
	server          *http.Server
	shutdownTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer required")
	}
	timeout := params.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return &Service{
		logg:            params.Logger,
		consumers:       params.Consumers,
		server:          params.Server,
		shutdownTimeout: timeout,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	for _, c := range s.consumers {
		c := c
		group.Go(func() error {
			return c.Run(groupCtx)
		})
	}

	if s.server != nil {
		group.Go(func() error {
			s.logg.Info(s.logg.WithField(groupCtx, "addr", s.server.Addr), "ops server listening")
			if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				s.logg.Error(ctx, "ops server shutdown failed", err)
			}
			return nil
		})
	}

	err := group.Wait()
	if err == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
