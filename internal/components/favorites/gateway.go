// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 Marrfa Go Authors

package favorites

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MahdiBaghbani/marrfa-go/internal/components/api"
	"github.com/MahdiBaghbani/marrfa-go/internal/components/identity"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/apierr"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/logutil"
)

// Backend paths.
const (
	AddPath  = "/savedreellyproperty"
	ListPath = "/savedproperty"
)

// Requester is the request-layer seam. Implemented by api.Client.
type Requester interface {
	Do(ctx context.Context, r api.Request) (*api.Response, error)
}

// Authenticator makes a token current for an identity. Implemented by exchange.Client.
type Authenticator interface {
	Ensure(ctx context.Context, email string) error
}

// Shape records which layout a list reply used.
type Shape string

const (
	ShapeArray      Shape = "array"
	ShapeItems      Shape = "items"
	ShapeProperties Shape = "properties"
	ShapeUnknown    Shape = "unknown"
)

// ListResult is a decoded favorites list.
type ListResult struct {
	Items []Property
	Shape Shape

	// Skipped counts list entries dropped for lacking a usable ID.
	Skipped int
}

// Gateway is the remote favorites API.
type Gateway struct {
	api    Requester
	auth   Authenticator
	logger *slog.Logger
}

// NewGateway creates a gateway.
func NewGateway(requester Requester, auth Authenticator, logger *slog.Logger) *Gateway {
	return &Gateway{
		api:    requester,
		auth:   auth,
		logger: logutil.NoopIfNil(logger),
	}
}

// Add saves propertyID for email.
func (g *Gateway) Add(ctx context.Context, email string, propertyID int64) (json.RawMessage, error) {
	id, err := validate("add favorite", email, propertyID)
	if err != nil {
		return nil, err
	}
	if err := g.auth.Ensure(ctx, id); err != nil {
		return nil, err
	}

	resp, err := g.api.Do(ctx, api.Request{
		Method:   http.MethodPost,
		Path:     AddPath,
		Body:     addRequest{ID: propertyID, User: id},
		Identity: id,
	})
	if err != nil {
		return nil, err
	}
	g.logger.Info("favorite added", "identity", id, "property_id", propertyID)
	return resp.Raw(), nil
}

type addRequest struct {
	ID   int64  `json:"id"`
	User string `json:"user"`
}

// List returns the saved properties of email.
func (g *Gateway) List(ctx context.Context, email string) (ListResult, error) {
	id, err := identity.Require("list favorites", email)
	if err != nil {
		return ListResult{}, err
	}
	if err := g.auth.Ensure(ctx, id); err != nil {
		return ListResult{}, err
	}

	resp, err := g.api.Do(ctx, api.Request{
		Method:   http.MethodGet,
		Path:     ListPath,
		Query:    url.Values{"email": {id}},
		Identity: id,
	})
	if err != nil {
		return ListResult{}, err
	}

	result := DecodeList(resp.Body)
	if result.Shape == ShapeUnknown {
		g.logger.Warn("unrecognized favorites payload, treating as empty", "identity", id)
	}
	if result.Skipped > 0 {
		g.logger.Warn("dropped favorites without a usable id", "identity", id, "count", result.Skipped)
	}
	g.logger.Debug("favorites listed", "identity", id, "count", len(result.Items), "shape", result.Shape)
	return result, nil
}

// Remove deletes propertyID from email's favorites.
func (g *Gateway) Remove(ctx context.Context, email string, propertyID int64) (json.RawMessage, error) {
	id, err := validate("remove favorite", email, propertyID)
	if err != nil {
		return nil, err
	}
	if err := g.auth.Ensure(ctx, id); err != nil {
		return nil, err
	}

	resp, err := g.api.Do(ctx, api.Request{
		Method: http.MethodDelete,
		Path:   ListPath,
		Query: url.Values{
			"email": {id},
			"id":    {strconv.FormatInt(propertyID, 10)},
		},
		Identity: id,
	})
	if err != nil {
		return nil, err
	}
	g.logger.Info("favorite removed", "identity", id, "property_id", propertyID)
	return resp.Raw(), nil
}

// IsFavorite lists email's favorites and reports whether propertyID is among them.
func (g *Gateway) IsFavorite(ctx context.Context, email string, propertyID int64) (bool, error) {
	result, err := g.List(ctx, email)
	if err != nil {
		return false, err
	}
	for _, p := range result.Items {
		if p.ID == propertyID {
			return true, nil
		}
	}
	return false, nil
}

func validate(op, email string, propertyID int64) (string, error) {
	id, err := identity.Require(op, email)
	if err != nil {
		return "", err
	}
	if propertyID <= 0 {
		return "", apierr.Validation(op, apierr.ErrPropertyIDRequired)
	}
	return id, nil
}

// listRules are tried in order; the first that matches decides the shape.
var listRules = []struct {
	shape  Shape
	decode func([]byte) ([]json.RawMessage, bool)
}{
	{ShapeArray, func(b []byte) ([]json.RawMessage, bool) {
		var items []json.RawMessage
		return items, json.Unmarshal(b, &items) == nil && items != nil
	}},
	{ShapeItems, envelope("items")},
	{ShapeProperties, envelope("properties")},
}

func envelope(field string) func([]byte) ([]json.RawMessage, bool) {
	return func(b []byte) ([]json.RawMessage, bool) {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(b, &obj); err != nil {
			return nil, false
		}
		var items []json.RawMessage
		if err := json.Unmarshal(obj[field], &items); err != nil || items == nil {
			return nil, false
		}
		return items, true
	}
}

// DecodeList decodes a favorites reply: a bare array, {items: [...]} or
// {properties: [...]}. Anything else is an empty list of ShapeUnknown.
// Entries without a usable ID are skipped; duplicate IDs keep the first entry.
func DecodeList(body []byte) ListResult {
	for _, rule := range listRules {
		raw, ok := rule.decode(body)
		if !ok {
			continue
		}
		result := ListResult{Items: make([]Property, 0, len(raw)), Shape: rule.shape}
		seen := make(map[int64]bool, len(raw))
		for _, item := range raw {
			var p Property
			if err := json.Unmarshal(item, &p); err != nil {
				result.Skipped++
				continue
			}
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			result.Items = append(result.Items, p)
		}
		return result
	}
	return ListResult{Items: []Property{}, Shape: ShapeUnknown}
}
