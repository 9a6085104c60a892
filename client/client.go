package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/commandpost/dispatch-core/models"
)

// TokenSource supplies the bearer credential attached to every request.
// Issuance and refresh are owned by the external auth service; the core
// only asks for a token and, on a rejection, asks for a fresh one.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for a fixed credential. Refresh returns
// the same token, so an auth rejection surfaces after one retry.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// Refresh implements TokenSource.
func (s StaticToken) Refresh(context.Context) (string, error) { return string(s), nil }

// Client is the HTTP surface of the dispatch service. It owns request
// plumbing only; caching lives in Store and durability in Queue.
type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  TokenSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// New returns a Client for the dispatch service at baseURL.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured service URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Calls fetches every call on the board.
func (c *Client) Calls(ctx context.Context) ([]models.Call, error) {
	var calls []models.Call
	if err := c.getJSON(ctx, "/api/v1/calls", &calls); err != nil {
		return nil, err
	}
	return calls, nil
}

// Units fetches every responder unit.
func (c *Client) Units(ctx context.Context) ([]models.Unit, error) {
	var units []models.Unit
	if err := c.getJSON(ctx, "/api/v1/units", &units); err != nil {
		return nil, err
	}
	return units, nil
}

// Events fetches the global audit stream, newest first.
func (c *Client) Events(ctx context.Context) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	if err := c.getJSON(ctx, "/api/v1/events", &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindValidation, Op: "GET " + path, Message: "failed to decode response", Err: err}
	}
	return nil
}

// Do sends one request with the bearer credential attached. On a 401 it
// asks the TokenSource for a fresh credential and retries exactly once.
// Any non-2xx response or transport failure comes back as *Error.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, header http.Header) (*http.Response, error) {
	op := method + " " + path

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, &Error{Kind: KindAuth, Op: op, Message: "failed to get token", Err: err}
	}

	resp, err := c.send(ctx, method, path, body, header, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		zap.S().Debugw("credential rejected, refreshing once", "op", op)
		token, err = c.tokens.Refresh(ctx)
		if err != nil {
			return nil, &Error{Kind: KindAuth, Op: op, Status: http.StatusUnauthorized, Message: "token refresh failed", Err: err}
		}
		resp, err = c.send(ctx, method, path, body, header, token)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, &Error{
		Kind:    kindForStatus(resp.StatusCode),
		Op:      op,
		Status:  resp.StatusCode,
		Message: readErrorMessage(resp.Body, resp.StatusCode),
	}
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, header http.Header, token string) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Op: method + " " + path, Message: "failed to build request", Err: err}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		kind := KindNetwork
		if !networkErr(err) && errors.Is(err, context.Canceled) {
			// a locally canceled request is not a connectivity signal
			kind = KindValidation
		}
		return nil, &Error{Kind: kind, Op: method + " " + path, Message: "request failed", Err: err}
	}
	return resp, nil
}

func readErrorMessage(r io.Reader, status int) string {
	var payload models.ErrorMessageResponse
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&payload); err == nil && payload.Response.Message != "" {
		return payload.Response.Message
	}
	return fmt.Sprintf("server returned %d", status)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
