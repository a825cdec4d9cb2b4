package discogs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/justestif/discat/internal/metrics"
	"github.com/justestif/discat/internal/pace"
)

const (
	defaultBaseURL = "https://api.discogs.com"
	userAgent      = "discat/1.0"

	remainingHeader = "X-Discogs-Ratelimit-Remaining"

	// Assumed quota when the header is absent or unparseable.
	defaultRemaining = 60
	defaultLowWater  = 5
	defaultCooldown  = 60 * time.Second

	defaultPageInterval = time.Second
	perPage             = 100
)

// RemoteError is returned for any non-2xx response.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("discogs: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("discogs: HTTP %d: %s", e.StatusCode, body)
}

// IsNotFound reports whether err is a 404 from the remote service.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

// Client is a Discogs API client. After every response it inspects the
// remaining-quota header and blocks for a cooldown when the quota runs low.
// It is not safe for concurrent use by multiple flows.
type Client struct {
	username   string
	httpClient *http.Client
	baseURL    string

	sleeper  pace.Sleeper
	logger   zerolog.Logger
	pageGate *rate.Limiter
	lowWater int
	cooldown time.Duration

	remaining atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithSleeper replaces the sleeper used for cooldowns.
func WithSleeper(s pace.Sleeper) Option {
	return func(c *Client) {
		c.sleeper = s
	}
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithPageInterval sets the minimum interval between collection pages.
func WithPageInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pageGate = pace.NewGate(d)
	}
}

// WithLowWater sets the quota below which the client pauses.
func WithLowWater(n int) Option {
	return func(c *Client) {
		c.lowWater = n
	}
}

// WithCooldown sets the pause taken when the quota runs low.
func WithCooldown(d time.Duration) Option {
	return func(c *Client) {
		c.cooldown = d
	}
}

// NewClient creates a Discogs client authenticated with a personal token.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Discogs expects "Authorization: Discogs token=<token>".
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: "token=" + cfg.Token,
		TokenType:   "Discogs",
	})

	c := &Client{
		username: cfg.Username,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &oauth2.Transport{Source: src, Base: http.DefaultTransport},
		},
		baseURL:  defaultBaseURL,
		sleeper:  pace.Real,
		logger:   zerolog.Nop(),
		pageGate: pace.NewGate(defaultPageInterval),
		lowWater: defaultLowWater,
		cooldown: defaultCooldown,
	}
	c.remaining.Store(defaultRemaining)

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Username returns the collection owner.
func (c *Client) Username() string {
	return c.username
}

// LastRemaining returns the quota reported by the most recent response.
func (c *Client) LastRemaining() int {
	return int(c.remaining.Load())
}

// Do performs one request. body, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded response. Empty and 204 responses decode
// nothing. Non-2xx responses return *RemoteError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	metrics.RecordRequest(method, resp.StatusCode, time.Since(start))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	// The quota is governed on every response, including errors.
	if err := c.governQuota(ctx, resp.Header); err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// governQuota reads the remaining-quota header and blocks for the cooldown
// when it has fallen below the low-water mark.
func (c *Client) governQuota(ctx context.Context, h http.Header) error {
	remaining := defaultRemaining
	if v := h.Get(remainingHeader); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			remaining = n
		}
	}
	c.remaining.Store(int64(remaining))
	metrics.RateLimitRemaining.Set(float64(remaining))

	if remaining >= c.lowWater {
		return nil
	}

	c.logger.Warn().
		Int("remaining", remaining).
		Dur("cooldown", c.cooldown).
		Msg("rate limit low, pausing")
	metrics.RateLimitPauses.Inc()

	if err := c.sleeper.Sleep(ctx, c.cooldown); err != nil {
		return fmt.Errorf("rate limit cooldown: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) userPath(format string, args ...any) string {
	return "/users/" + url.PathEscape(c.username) + fmt.Sprintf(format, args...)
}
