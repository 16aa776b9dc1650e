package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MahdiBaghbani/marrfa-go/internal/components/favorites"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/config"
	"github.com/MahdiBaghbani/marrfa-go/internal/session"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store/memory"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/store/testutil"
	"github.com/MahdiBaghbani/marrfa-go/internal/testutil/backend"
)

type fixture struct {
	backend *backend.Backend
	kv      store.KV
	clock   *testutil.Clock
	cfg     *config.Config
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	b := backend.New(t)
	clock := testutil.NewClock()
	kv := memory.New(0, clock.Now)
	t.Cleanup(func() { kv.Close() })

	cfg := config.ProdConfig()
	cfg.API.BaseURL = b.URL()
	if mutate != nil {
		mutate(cfg)
	}
	return &fixture{backend: b, kv: kv, clock: clock, cfg: cfg}
}

func (f *fixture) open(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.New(session.Deps{Config: f.cfg, KV: f.kv, Clock: f.clock.Now})
	require.NoError(t, err)
	return s
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := session.New(session.Deps{})
	assert.Error(t, err)
}

func TestSignIn_LoadsFavorites(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.SeedFavorites("u@test.com", 101, 102)
	s := f.open(t)

	require.NoError(t, s.SignIn(context.Background(), "  U@Test.com "))

	assert.Equal(t, "u@test.com", s.Identity())
	st := s.Favorites().State()
	assert.Equal(t, favorites.PhaseIdle, st.Phase)
	require.Len(t, st.Favorites, 2)
	assert.Equal(t, "Marina Heights", st.Favorites[0].Name)

	bearer, ok := s.Tokens().Bearer("u@test.com")
	require.True(t, ok)
	assert.NotEmpty(t, bearer)
}

func TestSignIn_ScenarioA(t *testing.T) {
	f := newFixture(t, nil)
	s := f.open(t)
	ctx := context.Background()
	require.NoError(t, s.SignIn(ctx, "u@test.com"))

	tok, err := s.FetchJWT(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Equal(t, 1, f.backend.Calls(backend.RouteJWT))

	cur := s.Tokens().Current()
	require.NotNil(t, cur)
	assert.True(t, cur.ExpiresAt.Equal(f.clock.Now().Add(f.cfg.Token.TTL())), "expected ~50 minute expiry, got %v", cur.ExpiresAt)
}

func TestSignIn_RequiresIdentity(t *testing.T) {
	f := newFixture(t, nil)
	s := f.open(t)
	assert.Error(t, s.SignIn(context.Background(), " "))
	assert.Empty(t, s.Identity())
}

func TestSignIn_ReusesPersistedToken(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.open(t)
	require.NoError(t, first.SignIn(ctx, "u@test.com"))
	require.Equal(t, 1, f.backend.Calls(backend.RouteJWT))

	// A second process over the same store picks the token up.
	second := f.open(t)
	require.NoError(t, second.SignIn(ctx, "u@test.com"))
	assert.Equal(t, 1, f.backend.Calls(backend.RouteJWT))
}

func TestSignIn_SwitchIdentity(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.SeedFavorites("a@test.com", 101)
	f.backend.SeedFavorites("b@test.com", 103, 104)
	s := f.open(t)
	ctx := context.Background()

	require.NoError(t, s.SignIn(ctx, "a@test.com"))
	require.Len(t, s.Favorites().State().Favorites, 1)

	require.NoError(t, s.SignIn(ctx, "b@test.com"))
	st := s.Favorites().State()
	assert.Equal(t, "b@test.com", st.Identity)
	assert.Len(t, st.Favorites, 2)
	_, ok := s.Tokens().Bearer("a@test.com")
	assert.False(t, ok, "the previous identity's token must not be current")
}

func TestSignOut_ForgetsToken(t *testing.T) {
	f := newFixture(t, nil)
	require.True(t, f.cfg.ForgetTokenOnSignOut())
	f.backend.SeedFavorites("u@test.com", 101)
	s := f.open(t)
	ctx := context.Background()
	require.NoError(t, s.SignIn(ctx, "u@test.com"))

	s.SignOut(ctx)

	assert.Empty(t, s.Identity())
	assert.Nil(t, s.Tokens().Current())
	st := s.Favorites().State()
	assert.Empty(t, st.Favorites)
	assert.Equal(t, favorites.PhaseUnloaded, st.Phase)
	_, err := f.kv.Get(ctx, "marrfa:jwt:u@test.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Mutations after sign-out are ignored.
	s.Favorites().Toggle(ctx, favorites.Property{ID: 102})
	assert.Equal(t, 0, f.backend.Calls(backend.RouteAddFavorite))
}

func TestSignOut_KeepsTokenWhenConfigured(t *testing.T) {
	keep := false
	f := newFixture(t, func(c *config.Config) { c.Token.ForgetOnSignOut = &keep })
	s := f.open(t)
	ctx := context.Background()
	require.NoError(t, s.SignIn(ctx, "u@test.com"))

	s.SignOut(ctx)

	assert.Nil(t, s.Tokens().Current())
	_, err := f.kv.Get(ctx, "marrfa:jwt:u@test.com")
	assert.NoError(t, err)

	require.NoError(t, s.SignIn(ctx, "u@test.com"))
	assert.Equal(t, 1, f.backend.Calls(backend.RouteJWT), "persisted token is reused")
}

func TestSealedTokenCache(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Token.SealKey = "local-secret" })
	s := f.open(t)
	ctx := context.Background()
	require.NoError(t, s.SignIn(ctx, "u@test.com"))

	raw, err := f.kv.Get(ctx, "marrfa:jwt:u@test.com")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "tok-")
	assert.Contains(t, string(raw), "v1.")
}

func TestFavoritesThroughSession(t *testing.T) {
	f := newFixture(t, nil)
	s := f.open(t)
	ctx := context.Background()
	require.NoError(t, s.SignIn(ctx, "u@test.com"))

	s.Favorites().Toggle(ctx, favorites.Property{ID: 7, Name: "X"})
	assert.True(t, s.Favorites().IsFavorited(7))
	assert.Equal(t, []int64{7}, f.backend.Favorites("u@test.com"))

	f.backend.Fail(backend.RouteRemoveFavorite, 503)
	s.Favorites().Toggle(ctx, favorites.Property{ID: 7})
	assert.True(t, s.Favorites().IsFavorited(7), "failed remove rolls back")
	assert.NotEmpty(t, s.Favorites().State().Err)
}
