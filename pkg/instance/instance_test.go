package instance

import (
	"errors"
	"testing"
)

func withHostname(t *testing.T, fn func() (string, error)) {
	t.Helper()
	prev := hostname
	hostname = fn
	t.Cleanup(func() { hostname = prev })
}

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv("LEDGER_WORKER_ID", " ledger-7 ")
	withHostname(t, func() (string, error) { return "box", nil })
	if got := GetID(); got != "ledger-7" {
		t.Fatalf("expected env id, got %q", got)
	}
}

func TestGetIDFallsBackToHostname(t *testing.T) {
	t.Setenv("LEDGER_WORKER_ID", "")
	withHostname(t, func() (string, error) { return "box-1", nil })
	if got := GetID(); got != "ledger-box-1" {
		t.Fatalf("expected hostname id, got %q", got)
	}
}

func TestGetIDDefault(t *testing.T) {
	t.Setenv("LEDGER_WORKER_ID", "")
	withHostname(t, func() (string, error) { return "", errors.New("no host") })
	if got := GetID(); got != fallbackID {
		t.Fatalf("expected %q, got %q", fallbackID, got)
	}
}
