package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnsuccessful reports a well-formed response whose envelope carried
// success=false.
var ErrUnsuccessful = errors.New("backend reported failure")

// Transport executes logical operations against an explicit base address.
// This interface is implemented by *Client and can be used for testing.
type Transport interface {
	Do(ctx context.Context, base string, req Request) (Envelope, error)
	Health(ctx context.Context, base string) error
	Nudge(ctx context.Context, base string) error
}

// Ensure Client implements Transport at compile time.
var _ Transport = (*Client)(nil)

// Client talks to the requisition backend over HTTP.
type Client struct {
	http      *http.Client
	userAgent string
	token     string
}

const (
	defaultUserAgent = "orbit/0.1"
	requestCeiling   = 30 * time.Second
	maxErrorBody     = 512
)

// ClientOptions configures NewClient.
type ClientOptions struct {
	Token     string
	UserAgent string
	// Timeout is a ceiling; callers bound each call with their own context.
	Timeout time.Duration
}

// NewClient builds a Client.
func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = requestCeiling
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: ua,
		token:     strings.TrimSpace(opts.Token),
	}
}

// Do sends req to base and decodes the envelope. Transport failures, HTTP
// error statuses, undecodable bodies and success=false envelopes all return
// an error.
func (c *Client) Do(ctx context.Context, base string, req Request) (Envelope, error) {
	if c == nil {
		return Envelope{}, fmt.Errorf("client is nil")
	}
	rel := &url.URL{Path: req.Path}
	if len(req.Query) > 0 {
		rel.RawQuery = req.Query.Encode()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var env Envelope
	if err := c.doURL(ctx, method, base, rel, req.Body, &env); err != nil {
		return Envelope{}, err
	}
	if !env.Success {
		reason := strings.TrimSpace(env.Error)
		if reason == "" {
			reason = strings.TrimSpace(env.Message)
		}
		if reason == "" {
			return env, fmt.Errorf("%s: %w", req.Path, ErrUnsuccessful)
		}
		return env, fmt.Errorf("%s: %w: %s", req.Path, ErrUnsuccessful, reason)
	}
	for i := range env.Cards {
		if !env.Cards[i].Status.Valid() {
			env.Cards[i].Status = StageRequested
		}
		env.Cards[i].Synthetic = false
	}
	return env, nil
}

// Health checks /api/health. Only the HTTP status matters.
func (c *Client) Health(ctx context.Context, base string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	return c.doURL(ctx, http.MethodGet, base, &url.URL{Path: "/api/health"}, nil, nil)
}

// Nudge sends a cheap OPTIONS request to wake a backend that idles when
// unused.
func (c *Client) Nudge(ctx context.Context, base string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	return c.doURL(ctx, http.MethodOptions, base, &url.URL{Path: "/api/login"}, nil, nil)
}

func (c *Client) doURL(ctx context.Context, method, base string, rel *url.URL, body any, dest any) error {
	baseURL, err := ParseBaseURL(base)
	if err != nil {
		return err
	}
	reqURL := baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if msg := strings.TrimSpace(string(snippet)); msg != "" {
			return fmt.Errorf("api %s returned status %d: %s", rel.Path, resp.StatusCode, msg)
		}
		return fmt.Errorf("api %s returned status %d", rel.Path, resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ParseBaseURL normalizes a configured address into a scheme+host URL.
// Bare host:port values get an http scheme.
func ParseBaseURL(address string) (*url.URL, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, fmt.Errorf("base address is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", address, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse address %q: missing host", address)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
