package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/MahdiBaghbani/marrfa-go/internal/components/api"
	"github.com/MahdiBaghbani/marrfa-go/internal/components/catalog"
	"github.com/MahdiBaghbani/marrfa-go/internal/components/token"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/apierr"
	"github.com/MahdiBaghbani/marrfa-go/internal/testutil/backend"
)

func newClient(t *testing.T) (*catalog.Client, *backend.Backend) {
	t.Helper()
	b := backend.New(t)
	requester, err := api.NewClient(api.Options{BaseURL: b.URL()})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return catalog.NewClient(requester), b
}

func propertyIDs(t *testing.T, raw []byte) []int64 {
	t.Helper()
	var list []struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		var env struct {
			Properties []struct {
				ID int64 `json:"id"`
			} `json:"properties"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("failed to decode %s: %v", raw, err)
		}
		list = env.Properties
	}
	ids := make([]int64, len(list))
	for i, p := range list {
		ids[i] = p.ID
	}
	return ids
}

func TestCityProperties(t *testing.T) {
	c, b := newClient(t)

	raw, err := c.CityProperties(context.Background(), " Abu Dhabi ")
	if err != nil {
		t.Fatalf("CityProperties failed: %v", err)
	}
	if ids := propertyIDs(t, raw); len(ids) != 1 || ids[0] != 103 {
		t.Errorf("expected [103], got %v", ids)
	}
	req := b.LastRequest(backend.RouteCityProperties)
	if req.Query.Get("cityName") != "Abu Dhabi" {
		t.Errorf("unexpected query %v", req.Query)
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("expected no Authorization without a current token")
	}
	if b.Calls(backend.RouteJWT) != 0 {
		t.Error("expected no token exchange")
	}
}

func TestCityProperties_AttachesCurrentToken(t *testing.T) {
	b := backend.New(t)
	tok := b.IssueToken("kim@example.com")
	manager := token.NewManager(nil, time.Now)
	manager.SetCurrent(&token.BearerToken{Token: tok, Identity: "kim@example.com", ExpiresAt: time.Now().Add(time.Hour)})
	requester, err := api.NewClient(api.Options{BaseURL: b.URL(), Tokens: manager})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := catalog.NewClient(requester).CityProperties(context.Background(), "Dubai"); err != nil {
		t.Fatalf("CityProperties failed: %v", err)
	}
	req := b.LastRequest(backend.RouteCityProperties)
	if got := req.Header.Get("Authorization"); got != "Bearer "+tok {
		t.Errorf("expected current token attached, got %q", got)
	}
	if b.Calls(backend.RouteJWT) != 0 {
		t.Error("expected no token exchange")
	}
}

func TestSearch(t *testing.T) {
	c, b := newClient(t)

	raw, err := c.Search(context.Background(), catalog.Filters{"city": "Dubai", "unit_types": ""})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if ids := propertyIDs(t, raw); len(ids) != 3 {
		t.Errorf("expected 3 Dubai properties, got %v", ids)
	}
	if _, ok := b.LastRequest(backend.RouteProperties).Query["unit_types"]; ok {
		t.Error("expected empty filters to be dropped")
	}
}

func TestByAreas(t *testing.T) {
	c, b := newClient(t)

	raw, err := c.ByAreas(context.Background(), []int64{1, 3})
	if err != nil {
		t.Fatalf("ByAreas failed: %v", err)
	}
	if got := b.LastRequest(backend.RouteProperties).Query.Get("areas"); got != "1,3" {
		t.Errorf("expected areas=1,3, got %q", got)
	}
	if ids := propertyIDs(t, raw); len(ids) != 3 {
		t.Errorf("expected 3 properties in areas 1 and 3, got %v", ids)
	}

	if _, err := c.ByAreas(context.Background(), nil); !errors.Is(err, apierr.ErrAreasRequired) {
		t.Errorf("expected areas required, got %v", err)
	}
}

func TestDetails(t *testing.T) {
	c, _ := newClient(t)

	raw, err := c.Details(context.Background(), 102)
	if err != nil {
		t.Fatalf("Details failed: %v", err)
	}
	var p backend.Property
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if p.Name != "Creek Vista" {
		t.Errorf("unexpected property %+v", p)
	}

	if _, err := c.Details(context.Background(), 999); apierr.StatusCode(err) != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
	if _, err := c.Details(context.Background(), 0); !apierr.Is(err, apierr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCityProperties_Required(t *testing.T) {
	c, _ := newClient(t)
	if _, err := c.CityProperties(context.Background(), "  "); !errors.Is(err, apierr.ErrCityRequired) {
		t.Errorf("expected city required, got %v", err)
	}
}
