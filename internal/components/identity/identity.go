// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 Marrfa Go Authors

// Package identity normalizes the email that keys every token and favorites operation.
package identity

import (
	"strings"

	"github.com/MahdiBaghbani/marrfa-go/internal/platform/apierr"
)

// Normalize trims surrounding whitespace and lowercases. It is idempotent.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Require normalizes email and fails with apierr.ErrIdentityRequired when it is empty.
func Require(op, email string) (string, error) {
	id := Normalize(email)
	if id == "" {
		return "", apierr.Validation(op, apierr.ErrIdentityRequired)
	}
	return id, nil
}
