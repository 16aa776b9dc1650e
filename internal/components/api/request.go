// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 Marrfa Go Authors

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes one backend call relative to the configured base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values

	// Body is sent as-is when it is []byte or json.RawMessage, otherwise JSON-encoded.
	Body any

	// Header carries extra headers. Content-Type defaults to application/json.
	Header http.Header

	// Identity selects whose bearer token is attached. Empty accepts the current token.
	Identity string

	// Anonymous requests never carry a bearer token and never warn about its absence.
	Anonymous bool
}

// Op names the request in errors and logs, e.g. "GET /savedproperty".
func (r Request) Op() string {
	return r.method() + " " + r.Path
}

// method returns Method, defaulting to GET.
func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// Response is a fully read 2xx reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// Raw returns the body as a JSON value. Empty bodies yield nil and non-JSON
// text is returned as a JSON string.
func (r *Response) Raw() json.RawMessage {
	if len(r.Body) == 0 {
		return nil
	}
	if json.Valid(r.Body) {
		return json.RawMessage(r.Body)
	}
	quoted, _ := json.Marshal(string(r.Body))
	return quoted
}
