package payloads

import (
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseVoteValue    = "0.25"
	DefaultFundingSource    = "uphold"
	DefaultReferralCurrency = "USD"
	DefaultAdCurrency       = "BAT"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
}

// ParseCreatedAt reads a producer timestamp. RFC 3339 strings, dates and
// epoch milliseconds are accepted; anything else yields fallback.
func ParseCreatedAt(value string, fallback time.Time) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback.UTC()
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC()
		}
	}
	if millis, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.UnixMilli(millis).UTC()
	}
	return fallback.UTC()
}
