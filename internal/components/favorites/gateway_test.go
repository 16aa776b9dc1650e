package favorites_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/MahdiBaghbani/marrfa-go/internal/components/api"
	"github.com/MahdiBaghbani/marrfa-go/internal/components/favorites"
	"github.com/MahdiBaghbani/marrfa-go/internal/components/token"
	"github.com/MahdiBaghbani/marrfa-go/internal/components/token/exchange"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/apierr"
	"github.com/MahdiBaghbani/marrfa-go/internal/testutil/backend"
)

func newGateway(t *testing.T) (*favorites.Gateway, *backend.Backend) {
	t.Helper()
	b := backend.New(t)
	manager := token.NewManager(nil, nil)
	requester, err := api.NewClient(api.Options{BaseURL: b.URL(), Tokens: manager})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	ex := exchange.NewClient(requester, manager, exchange.Options{})
	return favorites.NewGateway(requester, ex, nil), b
}

func TestGateway_Add(t *testing.T) {
	g, b := newGateway(t)

	raw, err := g.Add(context.Background(), " Alice@Example.com", 101)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(raw) == 0 {
		t.Error("expected the reply body to be returned")
	}

	req := b.LastRequest(backend.RouteAddFavorite)
	if string(req.Body) != `{"id":101,"user":"alice@example.com"}` {
		t.Errorf("unexpected add body %s", req.Body)
	}
	if req.Header.Get("Authorization") == "" {
		t.Error("expected bearer on add")
	}
	if got := b.Favorites("alice@example.com"); len(got) != 1 || got[0] != 101 {
		t.Errorf("expected server favorites [101], got %v", got)
	}
	if b.Calls(backend.RouteJWT) != 1 {
		t.Errorf("expected one token exchange, got %d", b.Calls(backend.RouteJWT))
	}
}

func TestGateway_ValidationBeforeIO(t *testing.T) {
	g, b := newGateway(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		call     func() error
		sentinel error
	}{
		{"add without email", func() error { _, err := g.Add(ctx, "", 1); return err }, apierr.ErrIdentityRequired},
		{"add without id", func() error { _, err := g.Add(ctx, "a@b.c", 0); return err }, apierr.ErrPropertyIDRequired},
		{"remove without email", func() error { _, err := g.Remove(ctx, " ", 1); return err }, apierr.ErrIdentityRequired},
		{"remove negative id", func() error { _, err := g.Remove(ctx, "a@b.c", -4); return err }, apierr.ErrPropertyIDRequired},
		{"list without email", func() error { _, err := g.List(ctx, ""); return err }, apierr.ErrIdentityRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !apierr.Is(err, apierr.KindValidation) || !errors.Is(err, tt.sentinel) {
				t.Errorf("expected validation error %v, got %v", tt.sentinel, err)
			}
		})
	}
	if b.Calls(backend.RouteJWT) != 0 {
		t.Error("expected no network traffic")
	}
}

func TestGateway_ListShapes(t *testing.T) {
	shapes := map[backend.ListShape]favorites.Shape{
		backend.ListArray:      favorites.ShapeArray,
		backend.ListItems:      favorites.ShapeItems,
		backend.ListProperties: favorites.ShapeProperties,
	}
	for serverShape, want := range shapes {
		t.Run(string(serverShape), func(t *testing.T) {
			g, b := newGateway(t)
			b.SetListShape(serverShape)
			b.SeedFavorites("bob@example.com", 101, 103)

			result, err := g.List(context.Background(), "bob@example.com")
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if result.Shape != want {
				t.Errorf("expected shape %s, got %s", want, result.Shape)
			}
			if len(result.Items) != 2 || result.Items[0].ID != 101 || result.Items[1].ID != 103 {
				t.Fatalf("unexpected items %+v", result.Items)
			}
			if result.Items[0].Name != "Marina Heights" {
				t.Errorf("expected snapshot name, got %q", result.Items[0].Name)
			}
		})
	}
}

func TestGateway_ListUnknownShape(t *testing.T) {
	g, b := newGateway(t)
	b.SetListShape(backend.ListUnknown)
	b.SeedFavorites("bob@example.com", 101)

	result, err := g.List(context.Background(), "bob@example.com")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Shape != favorites.ShapeUnknown || len(result.Items) != 0 {
		t.Errorf("expected empty unknown result, got %+v", result)
	}
}

func TestGateway_Remove(t *testing.T) {
	g, b := newGateway(t)
	b.SeedFavorites("carol@example.com", 101, 102)

	if _, err := g.Remove(context.Background(), "carol@example.com", 101); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	req := b.LastRequest(backend.RouteRemoveFavorite)
	if req.Query.Get("email") != "carol@example.com" || req.Query.Get("id") != "101" {
		t.Errorf("unexpected remove query %v", req.Query)
	}
	if got := b.Favorites("carol@example.com"); len(got) != 1 || got[0] != 102 {
		t.Errorf("expected [102] left, got %v", got)
	}
}

func TestGateway_ErrorsPropagate(t *testing.T) {
	g, b := newGateway(t)
	b.Fail(backend.RouteAddFavorite, http.StatusBadGateway)

	_, err := g.Add(context.Background(), "dan@example.com", 7)
	if apierr.StatusCode(err) != http.StatusBadGateway {
		t.Fatalf("expected 502 to propagate, got %v", err)
	}
}

func TestGateway_TokenFailureStopsCall(t *testing.T) {
	g, b := newGateway(t)
	b.Fail(backend.RouteJWT, http.StatusInternalServerError)

	if _, err := g.List(context.Background(), "erin@example.com"); err == nil {
		t.Fatal("expected token failure")
	}
	if b.Calls(backend.RouteListFavorites) != 0 {
		t.Error("expected no list call without a token")
	}
}

func TestGateway_IsFavorite(t *testing.T) {
	g, b := newGateway(t)
	b.SeedFavorites("fay@example.com", 104)

	ok, err := g.IsFavorite(context.Background(), "fay@example.com", 104)
	if err != nil || !ok {
		t.Errorf("expected 104 favorited, got %v %v", ok, err)
	}
	ok, err = g.IsFavorite(context.Background(), "fay@example.com", 101)
	if err != nil || ok {
		t.Errorf("expected 101 not favorited, got %v %v", ok, err)
	}
}

func TestDecodeList(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		shape   favorites.Shape
		ids     []int64
		skipped int
	}{
		{"array", `[{"id":1},{"id":2}]`, favorites.ShapeArray, []int64{1, 2}, 0},
		{"empty array", `[]`, favorites.ShapeArray, nil, 0},
		{"items", `{"items":[{"id":1},{"id":2}]}`, favorites.ShapeItems, []int64{1, 2}, 0},
		{"items wins over properties", `{"properties":[{"id":9}],"items":[{"id":1}]}`, favorites.ShapeItems, []int64{1}, 0},
		{"properties", `{"properties":[{"id":"3"}]}`, favorites.ShapeProperties, []int64{3}, 0},
		{"string and float ids", `[{"id":"5"},{"id":6.0}]`, favorites.ShapeArray, []int64{5, 6}, 0},
		{"duplicates collapse", `[{"id":1},{"id":1,"name":"dup"}]`, favorites.ShapeArray, []int64{1}, 0},
		{"unusable ids skipped", `[{"id":"abc"},{"name":"no id"},{"id":0},{"id":4}]`, favorites.ShapeArray, []int64{4}, 3},
		{"object without list", `{"favorites":[{"id":1}]}`, favorites.ShapeUnknown, nil, 0},
		{"items not a list", `{"items":"nope"}`, favorites.ShapeUnknown, nil, 0},
		{"null", `null`, favorites.ShapeUnknown, nil, 0},
		{"not json", `oops`, favorites.ShapeUnknown, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := favorites.DecodeList([]byte(tt.body))
			if got.Shape != tt.shape {
				t.Errorf("shape = %s, want %s", got.Shape, tt.shape)
			}
			if got.Items == nil {
				t.Error("expected non-nil items")
			}
			if len(got.Items) != len(tt.ids) {
				t.Fatalf("got %d items, want %d", len(got.Items), len(tt.ids))
			}
			for i, id := range tt.ids {
				if got.Items[i].ID != id {
					t.Errorf("item %d id = %d, want %d", i, got.Items[i].ID, id)
				}
			}
			if got.Skipped != tt.skipped {
				t.Errorf("skipped = %d, want %d", got.Skipped, tt.skipped)
			}
		})
	}
}

func TestProperty_Unmarshal(t *testing.T) {
	var p favorites.Property
	if err := json.Unmarshal([]byte(`{"id":"12","name":"Loft","price":"1,250,000","images":["a.jpg"],"city":"Dubai"}`), &p); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if p.ID != 12 || p.Name != "Loft" || p.Price != 1250000 || len(p.Images) != 1 {
		t.Errorf("unexpected property %+v", p)
	}
	if len(p.Raw) == 0 {
		t.Error("expected raw object kept")
	}
}
