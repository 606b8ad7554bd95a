package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"parishweb/internal/adapters/perf"
	"parishweb/internal/domain/conflict"
)

// DefaultResource is the path segment that owns the check-conflicts endpoint.
const DefaultResource = "parishioners"

// DefaultUpcomingPath serves the dashboard's upcoming events.
const DefaultUpcomingPath = "/dashboard/upcoming-events"

// DefaultBreakerFailures is how many consecutive failures open the breaker.
const DefaultBreakerFailures = 5

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// Errors returned by the client. Transport errors are returned wrapped as-is.
var (
	ErrEmptySubject     = errors.New("subject ID is required")
	ErrUnexpectedStatus = errors.New("unexpected backend status")
	ErrInvalidReport    = errors.New("invalid conflict report")
)

// Config configures a Client.
type Config struct {
	BaseURL         string        // e.g. "https://prm.example.org"
	Resource        string        // path segment before /view/{id}; defaults to DefaultResource
	Timeout         time.Duration // zero leaves the transport default (no timeout)
	BreakerFailures uint32        // consecutive failures before failing fast
	BreakerCooldown time.Duration // how long the breaker stays open
	UpcomingPath    string        // defaults to DefaultUpcomingPath
	Headers         http.Header   // sent with every request, e.g. a CSRF token
	Recorder        perf.Recorder // optional; receives one entry per call
}

// Client talks to the parish backend's AJAX endpoints.
type Client struct {
	base     *url.URL
	resource string
	upcoming []string
	headers  http.Header
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	schema   *reportSchema
	recorder perf.Recorder
}

// NewClient builds a client for cfg. A nil httpClient gets a fresh http.Client.
// PRE: cfg.BaseURL is an absolute http(s) URL
// POST: returns a ready client or a configuration error
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend URL must be http or https, got %q", cfg.BaseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout > 0 {
		hc := *httpClient
		hc.Timeout = cfg.Timeout
		httpClient = &hc
	}
	resource := strings.Trim(cfg.Resource, "/")
	if resource == "" {
		resource = DefaultResource
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = DefaultBreakerFailures
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	upcomingPath := strings.Trim(cfg.UpcomingPath, "/")
	if upcomingPath == "" {
		upcomingPath = strings.Trim(DefaultUpcomingPath, "/")
	}

	schema, err := newReportSchema()
	if err != nil {
		return nil, err
	}

	return &Client{
		base:     base,
		resource: resource,
		upcoming: strings.Split(upcomingPath, "/"),
		headers:  cfg.Headers.Clone(),
		http:     httpClient,
		schema:   schema,
		recorder: cfg.Recorder,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "backend",
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			IsSuccessful: healthy,
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("backend_breaker_state", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}, nil
}

// healthy reports whether err leaves the backend looking healthy to the breaker.
// Cancelled page requests and 4xx answers, such as a visitor without a
// session getting 401, say nothing about the backend itself.
func healthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code < 500
}

// CheckConflicts asks the backend whether the proposed event collides with
// existing ones for the subject and any additional participants.
// Exactly one POST is issued unless the breaker is open.
// PRE: subjectID is non-empty; snap.EventDate is non-empty
// POST: returns the decoded report or an error; no retries are attempted
func (c *Client) CheckConflicts(ctx context.Context, subjectID string, snap conflict.Snapshot) (conflict.Report, error) {
	if strings.TrimSpace(subjectID) == "" {
		return conflict.Report{}, ErrEmptySubject
	}
	u := c.endpoint(c.resource, "view", subjectID, "check-conflicts")
	u.RawQuery = snap.Encode()

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := c.newRequest(ctx, http.MethodPost, u)
		if err != nil {
			return nil, err
		}
		body, err := c.do(req)
		if err != nil {
			return nil, err
		}
		return c.decodeReport(body)
	})
	c.observe("check-conflicts", start, err)
	if err != nil {
		return conflict.Report{}, fmt.Errorf("check conflicts for %s: %w", subjectID, err)
	}
	return out.(conflict.Report), nil
}

// observe reports one call's timing to the recorder, if any.
func (c *Client) observe(name string, start time.Time, err error) {
	if c.recorder == nil {
		return
	}
	e := perf.Entry{
		Kind:       perf.KindBackend,
		Name:       name,
		StatusCode: http.StatusOK,
		Failed:     err != nil,
		DurationMs: perf.Since(start),
		Timestamp:  start,
	}
	var se *StatusError
	switch {
	case errors.As(err, &se):
		e.StatusCode = se.Code
	case err != nil:
		e.StatusCode = 0
	}
	c.recorder.Record(e)
}

// endpoint joins escaped path segments onto the base URL.
func (c *Client) endpoint(segments ...string) *url.URL {
	u := *c.base
	var b strings.Builder
	b.WriteString(strings.TrimRight(u.Path, "/"))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	u.Path = b.String()
	u.RawPath = ""
	return &u
}

// newRequest builds an AJAX-style request expecting JSON.
func (c *Client) newRequest(ctx context.Context, method string, u *url.URL) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	for name, values := range c.headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	for _, ck := range cookiesFrom(ctx) {
		req.AddCookie(ck)
	}
	return req, nil
}

// do sends req and returns the body of a 2xx response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return body, nil
}

func (c *Client) decodeReport(body []byte) (conflict.Report, error) {
	if err := c.schema.validate(body); err != nil {
		return conflict.Report{}, err
	}
	var r conflict.Report
	if err := json.Unmarshal(body, &r); err != nil {
		return conflict.Report{}, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return r, nil
}

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", ErrUnexpectedStatus, e.Code, http.StatusText(e.Code))
}

// Unwrap lets errors.Is match ErrUnexpectedStatus.
func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

type cookiesKey struct{}

// WithCookies returns a context whose backend requests carry the given cookies,
// so calls made for a page visitor reuse that visitor's backend session.
func WithCookies(ctx context.Context, cookies []*http.Cookie) context.Context {
	if len(cookies) == 0 {
		return ctx
	}
	return context.WithValue(ctx, cookiesKey{}, cookies)
}

// SessionCookies returns the cookies whose names are listed, in request order.
func SessionCookies(cookies []*http.Cookie, names []string) []*http.Cookie {
	var out []*http.Cookie
	for _, ck := range cookies {
		if slices.Contains(names, ck.Name) {
			out = append(out, ck)
		}
	}
	return out
}

func cookiesFrom(ctx context.Context) []*http.Cookie {
	cookies, _ := ctx.Value(cookiesKey{}).([]*http.Cookie)
	return cookies
}
