// Package eligibility asks the publishers service whether a channel may
// accrue votes.
package eligibility

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
	"github.com/angelmondragon/payoutledger/pkg/logger"
	"github.com/angelmondragon/payoutledger/pkg/redis"
)

const (
	defaultTimeout              = 2 * time.Second
	defaultCacheTTL             = 10 * time.Minute
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("eligibility base url is required")

// Checker decides whether votes for a channel should be tallied.
type Checker interface {
	IsChannelEligible(ctx context.Context, channel string) bool
}

// AlwaysEligible is the checker used when no eligibility service is configured.
type AlwaysEligible struct{}

func (AlwaysEligible) IsChannelEligible(context.Context, string) bool { return true }

type cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Client calls the publishers eligibility endpoint. Any failure is treated as
// eligible so an outage never drops votes.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	cache      cache
	cacheTTL   time.Duration
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCache stores answers in redis for ttl.
func WithCache(store cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = store
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithLogger reports fail-open decisions.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

// NewClient builds the eligibility client for baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: timeout},
		cacheTTL:   defaultCacheTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// IsChannelEligible returns the service's answer, or true when the answer
// cannot be obtained.
func (c *Client) IsChannelEligible(ctx context.Context, channel string) bool {
	eligible, err := c.Lookup(ctx, channel)
	if err != nil {
		if c.logg != nil {
			c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
				"channel": channel,
				"error":   err.Error(),
			}), "eligibility check failed, treating channel as eligible")
		}
		return true
	}
	return eligible
}

// Lookup returns the eligibility of channel, consulting the cache first.
func (c *Client) Lookup(ctx context.Context, channel string) (bool, error) {
	key := redis.EligibilityKey(channel)
	if c.cache != nil {
		cached, err := c.cache.Get(ctx, key)
		if err == nil {
			if eligible, parseErr := strconv.ParseBool(cached); parseErr == nil {
				return eligible, nil
			}
		} else if !redis.IsNil(err) && c.logg != nil {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "eligibility cache read failed")
		}
	}

	eligible, err := c.fetch(ctx, channel)
	if err != nil {
		return false, err
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, key, strconv.FormatBool(eligible), c.cacheTTL); err != nil && c.logg != nil {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "eligibility cache write failed")
		}
	}
	return eligible, nil
}

func (c *Client) fetch(ctx context.Context, channel string) (bool, error) {
	endpoint := fmt.Sprintf("%s/api/v1/channels/%s/eligibility", c.baseURL, url.PathEscape(channel))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build eligibility request")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute eligibility request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "eligibility request failed")
	}

	var body struct {
		Eligible bool `json:"eligible"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode eligibility response")
	}
	return body.Eligible, nil
}
