// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 Marrfa Go Authors

// Package catalog reads the public property catalog. No token is needed, but the
// current one is attached when present.
package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/MahdiBaghbani/marrfa-go/internal/components/api"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/apierr"
)

// Requester is the request-layer seam. Implemented by api.Client.
type Requester interface {
	Do(ctx context.Context, r api.Request) (*api.Response, error)
}

// Filters are passed through as query parameters of GET /properties,
// e.g. {"unit_types": "apartment", "unit_bedrooms": "2"}.
type Filters map[string]string

// Client queries catalog endpoints.
type Client struct {
	api Requester
}

// NewClient creates a catalog client.
func NewClient(requester Requester) *Client {
	return &Client{api: requester}
}

// CityProperties lists the properties of a city.
func (c *Client) CityProperties(ctx context.Context, city string) (json.RawMessage, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, apierr.Validation("city properties", apierr.ErrCityRequired)
	}
	return c.get(ctx, "/cityproperty", url.Values{"cityName": {city}})
}

// Search lists properties matching filters. Empty values are dropped.
func (c *Client) Search(ctx context.Context, filters Filters) (json.RawMessage, error) {
	q := url.Values{}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := strings.TrimSpace(filters[k]); v != "" {
			q.Set(k, v)
		}
	}
	return c.get(ctx, "/properties", q)
}

// ByAreas lists the properties in any of the given areas.
func (c *Client) ByAreas(ctx context.Context, areaIDs []int64) (json.RawMessage, error) {
	if len(areaIDs) == 0 {
		return nil, apierr.Validation("properties by areas", apierr.ErrAreasRequired)
	}
	parts := make([]string, len(areaIDs))
	for i, id := range areaIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return c.get(ctx, "/properties", url.Values{"areas": {strings.Join(parts, ",")}})
}

// Details returns one property.
func (c *Client) Details(ctx context.Context, propertyID int64) (json.RawMessage, error) {
	if propertyID <= 0 {
		return nil, apierr.Validation("property details", apierr.ErrPropertyIDRequired)
	}
	return c.get(ctx, "/single", url.Values{"id": {strconv.FormatInt(propertyID, 10)}})
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (json.RawMessage, error) {
	resp, err := c.api.Do(ctx, api.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  q,
	})
	if err != nil {
		return nil, err
	}
	return resp.Raw(), nil
}
