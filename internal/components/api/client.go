// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 Marrfa Go Authors

// Package api is the single path every backend call takes: it joins the base
// URL, injects the bearer token and request headers, and classifies failures.
package api

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
	"strings"

	"github.com/MahdiBaghbani/marrfa-go/internal/appctx"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/apierr"
	httpclient "github.com/MahdiBaghbani/marrfa-go/internal/platform/http/client"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/logutil"
)

// TokenSource yields the bearer token to attach for an identity.
// Implemented by token.Manager.
type TokenSource interface {
	Bearer(identity string) (string, bool)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient httpclient.HTTPClient
	Tokens     TokenSource
	Logger     *slog.Logger

	// AllowSensitive logs full tokens instead of a prefix.
	AllowSensitive bool
}

// Client performs backend requests.
type Client struct {
	base           *url.URL
	http           httpclient.HTTPClient
	tokens         TokenSource
	logger         *slog.Logger
	allowSensitive bool
}

// NewClient creates a request-layer client. A nil HTTPClient uses the
// production transport preset.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host required", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = httpclient.NewContextClient(httpclient.New(nil))
	}

	return &Client{
		base:           base,
		http:           hc,
		tokens:         opts.Tokens,
		logger:         logutil.NoopIfNil(opts.Logger),
		allowSensitive: opts.AllowSensitive,
	}, nil
}

// BaseURL returns the backend origin requests are resolved against.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Do sends r and returns the reply when its status is 2xx.
// Any other outcome is logged and returned as an *apierr.Error.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	ctx, reqID := appctx.EnsureRequestID(ctx)
	logger := appctx.GetLogger(ctx, c.logger).With("op", r.Op(), "request_id", reqID)

	req, err := c.build(ctx, r)
	if err != nil {
		return nil, c.fail(logger, &apierr.Error{
			Kind:    apierr.KindRequest,
			Op:      r.Op(),
			Message: "failed to build request",
			Cause:   err,
		})
	}
	req.Header.Set("X-Request-Id", reqID)
	c.authorize(logger, req, r)

	target := req.URL.String()
	logger.Debug("sending backend request", "target", target)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		kind := apierr.KindTransport
		if errors.Is(err, httpclient.ErrInvalidURL) {
			kind = apierr.KindRequest
		}
		return nil, c.fail(logger, &apierr.Error{
			Kind:    kind,
			Op:      r.Op(),
			Message: "no response from backend",
			Target:  target,
			Cause:   err,
		})
	}

	body, readErr := c.http.ReadBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.fail(logger, &apierr.Error{
			Kind:       apierr.KindHTTPStatus,
			Op:         r.Op(),
			Message:    "backend returned an error status",
			Target:     target,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       body,
			Header:     resp.Header,
		})
	}
	if readErr != nil {
		return nil, c.fail(logger, &apierr.Error{
			Kind:    apierr.KindTransport,
			Op:      r.Op(),
			Message: "failed to read response body",
			Target:  target,
			Cause:   readErr,
		})
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (c *Client) build(ctx context.Context, r Request) (*http.Request, error) {
	method := r.method()

	u := c.base.JoinPath(r.Path)
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		payload, err := encodeBody(r.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return payload, nil
}

// authorize attaches the bearer token when one is usable for the request's identity.
// A missing token does not block the request; the backend decides.
func (c *Client) authorize(logger *slog.Logger, req *http.Request, r Request) {
	if r.Anonymous {
		return
	}
	if c.tokens != nil {
		if tok, ok := c.tokens.Bearer(r.Identity); ok {
			req.Header.Set("Authorization", "Bearer "+tok)
			logger.Debug("attached bearer token", "token", logutil.RedactToken(tok, c.allowSensitive))
			return
		}
	}
	logger.Warn("no bearer token available, sending request without authorization", "identity", r.Identity)
}

func (c *Client) fail(logger *slog.Logger, e *apierr.Error) error {
	attrs := []any{"kind", string(e.Kind)}
	if e.Target != "" {
		attrs = append(attrs, "target", e.Target)
	}
	if e.Kind == apierr.KindHTTPStatus {
		attrs = append(attrs, "status", e.StatusCode, "body", truncate(e.Body, 256))
	}
	if e.Cause != nil {
		attrs = append(attrs, "error", e.Cause)
	}
	logger.Error(e.Message, attrs...)
	return e
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
