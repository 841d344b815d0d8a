package enums

import "fmt"

// EventKind names an inbound event stream; each kind has its own topic.
type EventKind string

const (
	EventKindVote       EventKind = "vote"
	EventKindSuggestion EventKind = "suggestion"
	EventKindSettlement EventKind = "settlement"
	EventKindReferral   EventKind = "referral"
	EventKindAdPayout   EventKind = "ad_payout"
)

var validEventKinds = []EventKind{
	EventKindVote,
	EventKindSuggestion,
	EventKindSettlement,
	EventKindReferral,
	EventKindAdPayout,
}

// EventKinds returns every inbound event kind.
func EventKinds() []EventKind {
	kinds := make([]EventKind, len(validEventKinds))
	copy(kinds, validEventKinds)
	return kinds
}

// IsValid reports whether the kind is known.
func (k EventKind) IsValid() bool {
	for _, candidate := range validEventKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseEventKind converts raw input into EventKind.
func ParseEventKind(value string) (EventKind, error) {
	for _, candidate := range validEventKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event kind %q", value)
}
