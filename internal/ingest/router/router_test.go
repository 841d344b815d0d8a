package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/internal/ingest/handlers"
	"github.com/angelmondragon/payoutledger/pkg/enums"
)

type nopHandler struct{}

func (nopHandler) Handle(context.Context, *gorm.DB, *handlers.Batch, any) (handlers.Outcome, error) {
	return handlers.OutcomeProcessed, nil
}

func TestRouterResolvesTopics(t *testing.T) {
	r, err := New(map[string]Route{
		"dev.payment.vote":      {Kind: enums.EventKindVote, Handler: nopHandler{}},
		"dev.settlement.payout": {Kind: enums.EventKindSettlement, Handler: nopHandler{}},
	})
	require.NoError(t, err)

	route, err := r.Route("dev.payment.vote")
	require.NoError(t, err)
	require.Equal(t, enums.EventKindVote, route.Kind)
	require.Equal(t, []string{"dev.payment.vote", "dev.settlement.payout"}, r.Topics())

	_, err = r.Route("dev.unknown")
	require.True(t, errors.Is(err, ErrUnsupportedEventType))
}

func TestRouterValidatesTable(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	_, err = New(map[string]Route{"topic": {Kind: "mystery", Handler: nopHandler{}}})
	require.Error(t, err)
	_, err = New(map[string]Route{"topic": {Kind: enums.EventKindVote}})
	require.Error(t, err)
	_, err = New(map[string]Route{" ": {Kind: enums.EventKindVote, Handler: nopHandler{}}})
	require.Error(t, err)
}
