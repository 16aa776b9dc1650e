// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 Marrfa Go Authors

// Package leads covers the token-gated user and lead-generation endpoints.
package leads

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MahdiBaghbani/marrfa-go/internal/components/api"
	"github.com/MahdiBaghbani/marrfa-go/internal/components/identity"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/apierr"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/logutil"
)

// Requester is the request-layer seam. Implemented by api.Client.
type Requester interface {
	Do(ctx context.Context, r api.Request) (*api.Response, error)
}

// Authenticator makes a token current for an identity. Implemented by exchange.Client.
type Authenticator interface {
	Ensure(ctx context.Context, email string) error
}

// UserProfile is the body of POST /users.
type UserProfile struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Photo string `json:"photo,omitempty"`
}

// PhoneDetails is the body of PATCH /userphone.
type PhoneDetails struct {
	Phone   string `json:"phone"`
	Code    string `json:"code,omitempty"`
	Country string `json:"country,omitempty"`
}

// InterestRequest is the body of POST /registerinterest.
type InterestRequest struct {
	PropertyID int64  `json:"propertyId"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	BuyerType  string `json:"buyerType,omitempty"`
	Country    string `json:"country,omitempty"`
	Purpose    string `json:"purpose,omitempty"`
	Source     string `json:"source,omitempty"`
}

// CallRequest is the body of POST /schedulecall.
type CallRequest struct {
	PropertyID int64  `json:"propertyId"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Date       string `json:"date,omitempty"`
	Time       string `json:"time,omitempty"`
	Message    string `json:"message,omitempty"`
	Source     string `json:"source,omitempty"`
}

// Default lead sources reported to the backend.
const (
	InterestSource = "Register Interest App"
	CallSource     = "Schedule Call App"
)

// Client calls the lead endpoints on behalf of a signed-in user.
type Client struct {
	api    Requester
	auth   Authenticator
	logger *slog.Logger
	now    func() time.Time
}

// NewClient creates a leads client.
func NewClient(requester Requester, auth Authenticator, logger *slog.Logger) *Client {
	return &Client{
		api:    requester,
		auth:   auth,
		logger: logutil.NoopIfNil(logger),
		now:    time.Now,
	}
}

// PostUser registers or updates the backend user record. The profile email
// defaults to the caller's identity.
func (c *Client) PostUser(ctx context.Context, email string, profile UserProfile) (json.RawMessage, error) {
	if email == "" {
		email = profile.Email
	}
	id, err := c.authorize(ctx, "post user", email)
	if err != nil {
		return nil, err
	}
	if profile.Email == "" {
		profile.Email = id
	}
	return c.send(ctx, id, api.Request{Method: http.MethodPost, Path: "/users", Body: profile})
}

// UserPhone returns the stored phone details of email.
func (c *Client) UserPhone(ctx context.Context, email string) (json.RawMessage, error) {
	id, err := c.authorize(ctx, "get user phone", email)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, id, api.Request{
		Method: http.MethodGet,
		Path:   "/userphone",
		Query:  url.Values{"email": {id}},
	})
}

// UpdateUserPhone replaces the phone details of email.
func (c *Client) UpdateUserPhone(ctx context.Context, email string, details PhoneDetails) (json.RawMessage, error) {
	id, err := identity.Require("update user phone", email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(details.Phone) == "" {
		return nil, apierr.Validation("update user phone", apierr.ErrPhoneRequired)
	}
	if err := c.auth.Ensure(ctx, id); err != nil {
		return nil, err
	}
	return c.send(ctx, id, api.Request{
		Method: http.MethodPatch,
		Path:   "/userphone",
		Query:  url.Values{"email": {id}},
		Body:   details,
	})
}

// RegisterInterest submits an interest lead for a property.
func (c *Client) RegisterInterest(ctx context.Context, email string, req InterestRequest) (json.RawMessage, error) {
	id, err := c.authorizeProperty(ctx, "register interest", email, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if req.Source == "" {
		req.Source = InterestSource
	}
	if req.Purpose == "" {
		req.Purpose = "-"
	}
	raw, err := c.send(ctx, id, api.Request{Method: http.MethodPost, Path: "/registerinterest", Body: req})
	if err == nil {
		c.logger.Info("interest registered", "identity", id, "property_id", req.PropertyID)
	}
	return raw, err
}

// ScheduleCall books a call about a property.
func (c *Client) ScheduleCall(ctx context.Context, email string, req CallRequest) (json.RawMessage, error) {
	id, err := c.authorizeProperty(ctx, "schedule call", email, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if req.Source == "" {
		req.Source = CallSource
	}
	raw, err := c.send(ctx, id, api.Request{Method: http.MethodPost, Path: "/schedulecall", Body: req})
	if err == nil {
		c.logger.Info("call scheduled", "identity", id, "property_id", req.PropertyID, "date", req.Date, "time", req.Time)
	}
	return raw, err
}

// Recommended returns the properties curated for email.
func (c *Client) Recommended(ctx context.Context, email string) (json.RawMessage, error) {
	id, err := c.authorize(ctx, "get recommendations", email)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, id, api.Request{
		Method: http.MethodGet,
		Path:   "/marrfacollectionspublic/" + url.PathEscape(id),
	})
}

// UpdateChatMessage records the user's side of a chatbot exchange.
// A zero at uses the current time.
func (c *Client) UpdateChatMessage(ctx context.Context, email, messageID, userMessage string, at time.Time) (json.RawMessage, error) {
	id, err := identity.Require("update chat message", email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(messageID) == "" {
		return nil, apierr.Validation("update chat message", apierr.ErrMessageIDRequired)
	}
	if err := c.auth.Ensure(ctx, id); err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = c.now()
	}
	return c.send(ctx, id, api.Request{
		Method: http.MethodPatch,
		Path:   "/updatemessage/" + url.PathEscape(messageID) + "/" + url.PathEscape(id),
		Body: chatMessage{
			User:      userMessage,
			TimeStamp: at.UnixMilli(),
		},
	})
}

type chatMessage struct {
	User      string `json:"user"`
	TimeStamp int64  `json:"timeStamp"`
}

func (c *Client) authorize(ctx context.Context, op, email string) (string, error) {
	id, err := identity.Require(op, email)
	if err != nil {
		return "", err
	}
	if err := c.auth.Ensure(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) authorizeProperty(ctx context.Context, op, email string, propertyID int64) (string, error) {
	id, err := identity.Require(op, email)
	if err != nil {
		return "", err
	}
	if propertyID <= 0 {
		return "", apierr.Validation(op, apierr.ErrPropertyIDRequired)
	}
	if err := c.auth.Ensure(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) send(ctx context.Context, id string, r api.Request) (json.RawMessage, error) {
	r.Identity = id
	resp, err := c.api.Do(ctx, r)
	if err != nil {
		return nil, err
	}
	return resp.Raw(), nil
}
