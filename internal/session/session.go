// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 Marrfa Go Authors

// Package session owns the per-user state of one signed-in client: the
// current bearer token and the favorites set, plus the clients that share them.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MahdiBaghbani/marrfa-go/internal/components/api"
	"github.com/MahdiBaghbani/marrfa-go/internal/components/catalog"
	"github.com/MahdiBaghbani/marrfa-go/internal/components/favorites"
	"github.com/MahdiBaghbani/marrfa-go/internal/components/identity"
	"github.com/MahdiBaghbani/marrfa-go/internal/components/leads"
	"github.com/MahdiBaghbani/marrfa-go/internal/components/token"
	"github.com/MahdiBaghbani/marrfa-go/internal/components/token/exchange"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/config"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/crypto"
	httpclient "github.com/MahdiBaghbani/marrfa-go/internal/platform/http/client"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store"
)

// Deps holds the collaborators of a Session.
type Deps struct {
	// Config is required.
	Config *config.Config

	// KV persists tokens across processes. Nil keeps tokens in memory only.
	KV store.KV

	// HTTPClient overrides the transport built from Config.API.
	HTTPClient httpclient.HTTPClient

	// Sealer overrides the sealer derived from Config.Token.SealKey.
	Sealer token.Sealer

	Logger *slog.Logger
	Clock  func() time.Time
}

// Session is the state object of one client.
type Session struct {
	cfg    *config.Config
	logger *slog.Logger

	tokens   *token.Manager
	api      *api.Client
	exchange *exchange.Client
	gateway  *favorites.Gateway
	engine   *favorites.Engine
	leads    *leads.Client
	catalog  *catalog.Client

	mu       sync.RWMutex
	identity string
}

// New wires a session. Nothing is fetched until SignIn.
func New(d Deps) (*Session, error) {
	if d.Config == nil {
		return nil, fmt.Errorf("session config is required")
	}
	logger := logutil.NoopIfNil(d.Logger)
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}

	sealer := d.Sealer
	if sealer == nil && d.Config.Token.SealKey != "" {
		s, err := crypto.NewSealer(d.Config.Token.SealKey)
		if err != nil {
			return nil, fmt.Errorf("failed to init token sealer: %w", err)
		}
		sealer = s
	}

	var cache *token.Cache
	if d.KV != nil {
		cache = token.NewCache(d.KV, token.CacheOptions{
			KeyPrefix: d.Config.Token.KeyPrefix,
			Sealer:    sealer,
			Clock:     clock,
			Logger:    logger.With("component", "token_cache"),
		})
	}
	tokens := token.NewManager(cache, clock)

	hc := d.HTTPClient
	if hc == nil {
		hc = httpclient.NewContextClient(httpclient.New(&d.Config.API))
	}
	apiClient, err := api.NewClient(api.Options{
		BaseURL:        d.Config.API.BaseURL,
		HTTPClient:     hc,
		Tokens:         tokens,
		Logger:         logger.With("component", "api"),
		AllowSensitive: d.Config.Logging.AllowSensitive,
	})
	if err != nil {
		return nil, err
	}

	ex := exchange.NewClient(apiClient, tokens, exchange.Options{
		TTL:            d.Config.Token.TTL(),
		Timeout:        d.Config.API.Timeout(),
		Logger:         logger.With("component", "exchange"),
		AllowSensitive: d.Config.Logging.AllowSensitive,
	})
	gateway := favorites.NewGateway(apiClient, ex, logger.With("component", "favorites_gateway"))

	return &Session{
		cfg:      d.Config,
		logger:   logger,
		tokens:   tokens,
		api:      apiClient,
		exchange: ex,
		gateway:  gateway,
		engine:   favorites.NewEngine(gateway, logger.With("component", "favorites")),
		leads:    leads.NewClient(apiClient, ex, logger.With("component", "leads")),
		catalog:  catalog.NewClient(apiClient),
	}, nil
}

// SignIn makes email the session identity. The current token and favorites
// are dropped and the favorites of email are loaded; a load failure is
// returned but the session stays signed in.
func (s *Session) SignIn(ctx context.Context, email string) error {
	id, err := identity.Require("sign in", email)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.identity = id
	s.mu.Unlock()

	s.tokens.Clear()
	s.logger.Info("signed in", "identity", id)
	return s.engine.SetIdentity(ctx, id)
}

// SignOut clears the identity, the current token and the favorites set.
// The persisted token is deleted when token.forget_on_sign_out is set.
func (s *Session) SignOut(ctx context.Context) {
	s.mu.Lock()
	id := s.identity
	s.identity = ""
	s.mu.Unlock()

	if s.cfg.ForgetTokenOnSignOut() {
		s.tokens.Forget(ctx, id)
	} else {
		s.tokens.Clear()
	}
	_ = s.engine.SetIdentity(ctx, "")
	s.logger.Info("signed out", "identity", id)
}

// Identity returns the signed-in identity, or "".
func (s *Session) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// FetchJWT returns a token for the signed-in identity.
func (s *Session) FetchJWT(ctx context.Context) (string, error) {
	return s.exchange.FetchJWT(ctx, s.Identity())
}

// Accessors for the session's components.

func (s *Session) Tokens() *token.Manager { return s.tokens }
func (s *Session) API() *api.Client { return s.api }
func (s *Session) Exchange() *exchange.Client { return s.exchange }
func (s *Session) Gateway() *favorites.Gateway { return s.gateway }
func (s *Session) Favorites() *favorites.Engine { return s.engine }
func (s *Session) Leads() *leads.Client { return s.leads }
func (s *Session) Catalog() *catalog.Client { return s.catalog }
