// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 Marrfa Go Authors

package favorites

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Property is a favorite entry: the property ID plus the display snapshot
// taken when it was favorited or last listed.
type Property struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name,omitempty"`
	Price  float64  `json:"price,omitempty"`
	Images []string `json:"images,omitempty"`

	// Raw is the object as the backend sent it, nil for locally built entries.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON accepts numeric or string IDs and prices.
func (p *Property) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID     json.RawMessage `json:"id"`
		Name   string          `json:"name"`
		Price  json.RawMessage `json:"price"`
		Images []string        `json:"images"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	id, err := parseID(wire.ID)
	if err != nil {
		return err
	}

	*p = Property{
		ID:     id,
		Name:   wire.Name,
		Price:  parsePrice(wire.Price),
		Images: wire.Images,
		Raw:    append(json.RawMessage(nil), data...),
	}
	return nil
}

// parseID decodes a JSON number or numeric string into a positive ID.
func parseID(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("property id missing")
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("invalid property id %s: %w", raw, err)
		}
		s = strings.TrimSpace(s)
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Some payloads carry integral IDs as floats, e.g. 7.0.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, fmt.Errorf("invalid property id %s", raw)
		}
		id = int64(f)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid property id %d", id)
	}
	return id, nil
}

// parsePrice is lenient: unparseable prices are zero.
func parsePrice(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		f, _ = strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
	}
	return f
}
