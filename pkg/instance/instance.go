package instance

import (
	"os"
	"strings"
)

const fallbackID = "ledger-worker-0"

// hostname is swapped in tests.
var hostname = os.Hostname

// GetID identifies this ledger worker to the broker and in logs.
// LEDGER_WORKER_ID wins, then the host name, then a fixed default.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv("LEDGER_WORKER_ID")); id != "" {
		return id
	}
	if host, err := hostname(); err == nil && strings.TrimSpace(host) != "" {
		return "ledger-" + strings.TrimSpace(host)
	}
	return fallbackID
}
