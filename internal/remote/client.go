// Package remote is the HTTP client for the bot dashboard REST API.
//
// Every call takes a context so callers can layer their own timeout or
// cancellation on top of the client-wide timeout. Failures are classified as
// ErrInvalidCredential, *RequestError (non-2xx) or *TransportError
// (network or decode failure).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

const (
	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 1 << 20
	userAgent        = "botlink/1"
	tracerName       = "github.com/nextlevelbuilder/botlink/internal/remote"
)

// Config configures the client.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	RateLimitRPM int // 0 disables client-side limiting
	Burst        int
	HTTPClient   *http.Client // optional, overrides Timeout
	Retry        RetryConfig  // applied to GET requests only
}

// Client talks to the dashboard service. Safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
	retry   RetryConfig
}

// New creates a client for cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("api base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api base URL must be http or https, got %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	c := &Client{base: base, http: hc, tracer: otel.Tracer(tracerName), retry: cfg.Retry}
	if cfg.RateLimitRPM > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 5
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPM)/60.0), burst)
	}
	return c, nil
}

// Link registers a bot token for the owner. A 401 maps to ErrInvalidCredential.
func (c *Client) Link(ctx context.Context, req protocol.LinkRequest) (protocol.Binding, error) {
	var b protocol.Binding
	err := c.do(ctx, "link bot", http.MethodPost, protocol.PathLink, nil, req, &b)
	if err != nil {
		if StatusCode(err) == http.StatusUnauthorized {
			return protocol.Binding{}, fmt.Errorf("link bot: %w", ErrInvalidCredential)
		}
		return protocol.Binding{}, err
	}
	return b, nil
}

// OwnerBots lists the bindings the service knows for an owner reference.
func (c *Client) OwnerBots(ctx context.Context, ownerRef string) ([]protocol.Binding, error) {
	var bots []protocol.Binding
	if err := c.do(ctx, "list owner bots", http.MethodGet, protocol.OwnerBotsPath(ownerRef), nil, nil, &bots); err != nil {
		return nil, err
	}
	return bots, nil
}

// IsVerified asks whether the owner completed the out-of-band check for botID.
func (c *Client) IsVerified(ctx context.Context, botID int64) (bool, error) {
	var ok bool
	if err := c.do(ctx, "check verification", http.MethodGet, protocol.IsVerifiedPath(botID), nil, nil, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Invite issues a fresh pass UUID for inviting a user to the bot.
func (c *Client) Invite(ctx context.Context, botID int64) (string, error) {
	var resp protocol.InviteResponse
	if err := c.do(ctx, "invite user", http.MethodPost, protocol.InvitePath(botID), nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.PassUUID, nil
}

// Refresh asks for a new constructor web URL in the given locale.
func (c *Client) Refresh(ctx context.Context, botID int64, locale string) (string, error) {
	q := url.Values{}
	if locale != "" {
		q.Set("locale", locale)
	}
	var resp protocol.RefreshResponse
	if err := c.do(ctx, "refresh web url", http.MethodPost, protocol.RefreshPath(botID), q, nil, &resp); err != nil {
		return "", err
	}
	return resp.WebURL, nil
}

// Logout terminates the dashboard session for botID.
func (c *Client) Logout(ctx context.Context, botID int64) error {
	return c.do(ctx, "logout", http.MethodPatch, protocol.LogoutPath(botID), nil, nil, nil)
}

// ListUsers fetches one page of the bot's roster.
func (c *Client) ListUsers(ctx context.Context, botID int64, params protocol.UsersParams) (protocol.UsersPage, error) {
	q, _ := url.ParseQuery(params.Encode())
	var page protocol.UsersPage
	if err := c.do(ctx, "list users", http.MethodGet, protocol.UsersPath(botID), q, nil, &page); err != nil {
		return protocol.UsersPage{}, err
	}
	return page, nil
}

// SetUserStatus activates or deactivates a roster user.
func (c *Client) SetUserStatus(ctx context.Context, botID int64, userID string, active bool) error {
	q := url.Values{"new_status": {strconv.FormatBool(active)}}
	return c.do(ctx, "set user status", http.MethodPatch, protocol.UserPath(botID, userID), q, nil, nil)
}

// DeleteUser removes a roster user.
func (c *Client) DeleteUser(ctx context.Context, botID int64, userID string) error {
	return c.do(ctx, "delete user", http.MethodDelete, protocol.UserPath(botID, userID), nil, nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	if method != http.MethodGet || c.retry.MaxRetries <= 0 {
		return c.doOnce(ctx, op, method, path, query, body, out)
	}
	return withRetry(ctx, c.retry, op, func() error {
		return c.doOnce(ctx, op, method, path, query, body, out)
	})
}

func (c *Client) doOnce(ctx context.Context, op, method, path string, query url.Values, body, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, op, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportError{Op: op, Err: err}
		}
	}

	// Route builders return escaped paths; keep them escaped on the wire.
	u := *c.base
	u.RawPath = c.base.EscapedPath() + path
	if u.Path, err = url.PathUnescape(u.RawPath); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("build path: %w", err)}
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", u.Path),
		attribute.String("botlink.request_id", requestID),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb protocol.ErrorBody
		_ = json.Unmarshal(data, &eb)
		slog.Debug("remote request failed", "op", op, "status", resp.StatusCode, "request_id", requestID)
		return &RequestError{Op: op, Status: resp.StatusCode, Detail: eb.Message()}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
