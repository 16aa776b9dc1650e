// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 Marrfa Go Authors

// Package exchange obtains bearer tokens from the backend's /jwt endpoint.
package exchange

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MahdiBaghbani/marrfa-go/internal/components/api"
	"github.com/MahdiBaghbani/marrfa-go/internal/components/identity"
	"github.com/MahdiBaghbani/marrfa-go/internal/components/token"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/apierr"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/logutil"
)

// TokenPath is the token issuance endpoint.
const TokenPath = "/jwt"

// DefaultTimeout bounds one shared exchange when Options.Timeout is unset.
const DefaultTimeout = 15 * time.Second

// Requester is the request-layer seam. Implemented by api.Client.
type Requester interface {
	Do(ctx context.Context, r api.Request) (*api.Response, error)
}

// Options configures a Client.
type Options struct {
	// TTL is how long an issued token is trusted. Zero uses token.DefaultTTL.
	TTL time.Duration

	// Timeout bounds the shared exchange, which outlives the callers that
	// started it. Zero uses DefaultTimeout.
	Timeout time.Duration

	Logger         *slog.Logger
	AllowSensitive bool
}

// Client runs the cache-first token exchange.
type Client struct {
	api            Requester
	tokens         *token.Manager
	ttl            time.Duration
	timeout        time.Duration
	group          singleflight.Group
	logger         *slog.Logger
	allowSensitive bool
}

// NewClient builds an exchange client over the request layer and token manager.
func NewClient(requester Requester, tokens *token.Manager, opts Options) *Client {
	if opts.TTL <= 0 {
		opts.TTL = token.DefaultTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Client{
		api:            requester,
		tokens:         tokens,
		ttl:            opts.TTL,
		timeout:        opts.Timeout,
		logger:         logutil.NoopIfNil(opts.Logger),
		allowSensitive: opts.AllowSensitive,
	}
}

// FetchJWT returns a usable token for email, from the cache when possible.
// Concurrent calls for the same identity share one exchange. The exchange is
// detached from any single caller's cancellation; a caller whose ctx ends
// stops waiting and gets ctx.Err() while the others still receive the token.
func (c *Client) FetchJWT(ctx context.Context, email string) (string, error) {
	id, err := identity.Require("fetch jwt", email)
	if err != nil {
		return "", err
	}

	if tok, ok := c.tokens.LoadFromCache(ctx, id); ok {
		c.logger.Debug("using cached token", "identity", id, "expires_at", tok.ExpiresAt)
		return tok.Token, nil
	}

	ch := c.group.DoChan(id, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.exchange(flightCtx, id)
	})

	select {
	case <-ctx.Done():
		c.logger.Debug("stopped waiting for token exchange", "identity", id, "error", ctx.Err())
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			c.logger.Debug("joined in-flight token exchange", "identity", id)
		}
		return res.Val.(string), nil
	}
}

// Ensure makes sure a token for email is current before an authorized call.
func (c *Client) Ensure(ctx context.Context, email string) error {
	_, err := c.FetchJWT(ctx, email)
	return err
}

func (c *Client) exchange(ctx context.Context, id string) (string, error) {
	c.logger.Info("requesting token", "identity", id)

	resp, err := c.api.Do(ctx, api.Request{
		Method:    http.MethodPost,
		Path:      TokenPath,
		Body:      map[string]string{"email": id},
		Anonymous: true,
	})
	if err != nil {
		return "", err
	}

	raw, ok := ExtractToken(resp.Body)
	if !ok {
		return "", apierr.Protocol("fetch jwt", apierr.ErrTokenMissing)
	}

	tok := c.tokens.SaveToCache(ctx, id, raw, c.ttl)
	c.logger.Info("token received", "identity", id,
		"token", logutil.RedactToken(raw, c.allowSensitive),
		"expires_at", tok.ExpiresAt)
	return raw, nil
}

// tokenFields are tried in order on an object reply.
var tokenFields = []string{"token", "accessToken", "jwt"}

// ExtractToken finds the token in a /jwt reply body. It accepts an object
// carrying token, accessToken or jwt (first non-empty string wins), a bare JSON
// string, or a raw non-JSON text body.
func ExtractToken(body []byte) (string, bool) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", false
	}

	if !json.Valid([]byte(trimmed)) {
		return trimmed, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		for _, field := range tokenFields {
			var s string
			if err := json.Unmarshal(obj[field], &s); err == nil && s != "" {
				return s, true
			}
		}
		return "", false
	}

	var s string
	if err := json.Unmarshal([]byte(trimmed), &s); err == nil && s != "" {
		return s, true
	}
	return "", false
}
