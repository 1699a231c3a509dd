// Package ticketing is a client for the ticketing platform's attendee API.
//
// Every call carries the API user and key as query parameters. The attendee
// endpoint is rate limited by the platform: calls to it from one client are
// spaced by at least MinInterval. Other endpoints are not throttled.
//
// Failures are mapped to core errors so callers can decide what to do:
// 401 and 403 become *core.AuthError, any other status of 400 or more becomes
// *core.APIError with that status, and transport failures or timeouts become
// *core.APIError with StatusCode 0.
package ticketing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMinInterval = 10 * time.Second

	// maxBodySize bounds responses; attendee lists for one event stay far below.
	maxBodySize = 32 << 20
)

// HTTPDoer is the subset of *http.Client the client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	Credentials Credentials
	Timeout     time.Duration // per request
	MinInterval time.Duration // between attendee calls
}

// Client calls the ticketing API with one set of credentials. It is safe for
// concurrent use; attendee calls from all goroutines share one limiter.
type Client struct {
	baseURL    string
	creds      Credentials
	timeout    time.Duration
	limiter    *rate.Limiter
	httpClient HTTPDoer
}

// NewClient creates a client. Zero durations fall back to the defaults.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		creds:      cfg.Credentials,
		timeout:    cfg.Timeout,
		limiter:    rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		httpClient: &http.Client{},
	}
}

// SetHTTPClient replaces the transport, for tests.
func (c *Client) SetHTTPClient(d HTTPDoer) {
	c.httpClient = d
}

// ListEvents returns the events visible to the credentials.
func (c *Client) ListEvents(ctx context.Context) ([]Event, error) {
	body, err := c.get(ctx, "/events", nil)
	if err != nil {
		return nil, err
	}
	events, err := decodeList[Event](body, "events")
	if err != nil {
		return nil, decodeError("events", err)
	}
	return events, nil
}

// ListSessions returns the sessions of a ticketing event.
func (c *Client) ListSessions(ctx context.Context, eventRef string) ([]Session, error) {
	body, err := c.get(ctx, "/events/"+url.PathEscape(eventRef)+"/sessions", nil)
	if err != nil {
		return nil, err
	}
	sessions, err := decodeList[Session](body, "sessions")
	if err != nil {
		return nil, decodeError("sessions", err)
	}
	return sessions, nil
}

// ListAttendees returns the attendees of a ticketing event changed since the
// given instant, or all of them when since is nil. The call waits for the
// rate limiter first.
func (c *Client) ListAttendees(ctx context.Context, eventRef string, since *time.Time) ([]Attendee, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &core.APIError{Message: "waiting for rate limit: " + err.Error(), Err: err}
	}

	q := url.Values{}
	if since != nil {
		q.Set("since", strconv.FormatInt(since.Unix(), 10))
	}
	body, err := c.get(ctx, "/events/"+url.PathEscape(eventRef)+"/attendees", q)
	if err != nil {
		return nil, err
	}
	attendees, err := decodeList[Attendee](body, "attendees")
	if err != nil {
		return nil, decodeError("attendees", err)
	}
	return attendees, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("user", c.creds.User)
	q.Set("key", c.creds.Key)
	reqURL := c.baseURL + path + "?" + q.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &core.APIError{Message: "build request: " + err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, transportError(path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &core.AuthError{StatusCode: resp.StatusCode, Message: snippet(body)}
	case resp.StatusCode >= 400:
		return nil, &core.APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("GET %s: %s", path, snippet(body))}
	}
	return body, nil
}

// transportError wraps a failure where no usable response was received.
// The credentials never appear in the message: url errors carry the full
// request URL, so only the path is reported.
func transportError(path string, err error) error {
	msg := "request failed"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "request timeout"
	case errors.Is(err, context.Canceled):
		msg = "request cancelled"
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	return &core.APIError{Message: fmt.Sprintf("GET %s: %s: %v", path, msg, err), Err: err}
}

func decodeError(what string, err error) error {
	return &core.APIError{Message: "decode " + what + ": " + err.Error(), Err: err}
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
