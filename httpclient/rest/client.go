package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"

	"github.com/kbukum/meetingflow/httpclient"
)

// Client speaks JSON over an httpclient.Client.
type Client struct {
	base *httpclient.Client
}

// New defaults Content-Type and Accept to application/json; headers already
// in cfg win.
func New(cfg httpclient.Config) (*Client, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	maps.Copy(headers, cfg.Headers)
	cfg.Headers = headers

	base, err := httpclient.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{base: base}, nil
}

// RequestOption adjusts a single request.
type RequestOption func(*httpclient.Request)

func WithQuery(params map[string]string) RequestOption {
	return func(r *httpclient.Request) { r.Query = params }
}

// WithAuth sends auth instead of the client's default credentials.
func WithAuth(auth httpclient.Auth) RequestOption {
	return func(r *httpclient.Request) { r.Auth = auth }
}

// Response carries the decoded body.
type Response[T any] struct {
	StatusCode int
	Header     http.Header
	Data       T
}

func Get[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (*Response[T], error) {
	return call[T](ctx, c, httpclient.Request{Method: http.MethodGet, Path: path}, opts)
}

func Post[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (*Response[T], error) {
	return call[T](ctx, c, httpclient.Request{Method: http.MethodPost, Path: path, Body: body}, opts)
}

// call returns the decoded body next to the status error when a failed
// response still parses as T, so provider error payloads stay readable.
func call[T any](ctx context.Context, c *Client, req httpclient.Request, opts []RequestOption) (*Response[T], error) {
	for _, o := range opts {
		o(&req)
	}
	resp, err := c.base.Do(ctx, req)
	if resp == nil {
		return nil, err
	}

	out := &Response[T]{StatusCode: resp.StatusCode, Header: resp.Header}
	if len(resp.Body) == 0 {
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	if derr := json.Unmarshal(resp.Body, &out.Data); derr != nil {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("rest: decode %s %s: %w", req.Method, req.Path, derr)
	}
	return out, err
}
