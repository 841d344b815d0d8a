package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/payoutledger/internal/ingest/handlers"
	"github.com/angelmondragon/payoutledger/pkg/enums"
)

// ErrUnsupportedEventType is returned for topics without a registered route.
var ErrUnsupportedEventType = errors.New("unsupported event type")

// Route binds a topic to the payload kind it carries and its handler.
type Route struct {
	Kind    enums.EventKind
	Handler handlers.Handler
}

// Router resolves topic names to routes. The table is fixed at construction.
type Router struct {
	routes map[string]Route
}

// New validates and copies the routing table.
func New(routes map[string]Route) (*Router, error) {
	if len(routes) == 0 {
		return nil, errors.New("at least one route is required")
	}
	table := make(map[string]Route, len(routes))
	for topic, route := range routes {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			return nil, errors.New("route topic is required")
		}
		if !route.Kind.IsValid() {
			return nil, fmt.Errorf("route %s: invalid event kind %q", topic, route.Kind)
		}
		if route.Handler == nil {
			return nil, fmt.Errorf("route %s: handler required", topic)
		}
		table[topic] = route
	}
	return &Router{routes: table}, nil
}

// Route returns the route registered for topic.
func (r *Router) Route(topic string) (Route, error) {
	route, ok := r.routes[topic]
	if !ok {
		return Route{}, fmt.Errorf("%w: topic %q", ErrUnsupportedEventType, topic)
	}
	return route, nil
}

// Topics lists the routed topics in a stable order.
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.routes))
	for topic := range r.routes {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}
