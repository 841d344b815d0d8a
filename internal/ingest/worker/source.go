package worker

import (
	"context"
	"strconv"
	"strings"
)

// Message is one inbound event as delivered by a source.
type Message struct {
	// ID identifies the delivery for logs and reports.
	ID        string
	Topic     string
	Partition int
	Offset    int64
	Version   int
	Value     []byte

	raw any
}

// Source delivers batches for a single topic. A batch is either committed
// after its transaction commits or aborted for redelivery.
type Source interface {
	Topic() string
	Fetch(ctx context.Context) ([]Message, error)
	Commit(ctx context.Context, msgs []Message) error
	Abort(ctx context.Context, msgs []Message)
	Close() error
}

// parseVersion reads a schema version header; zero means unset.
func parseVersion(value string) int {
	version, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || version < 0 {
		return 0
	}
	return version
}
