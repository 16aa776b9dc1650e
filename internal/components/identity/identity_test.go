package identity_test

import (
	"errors"
	"testing"

	"github.com/MahdiBaghbani/marrfa-go/internal/components/identity"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/apierr"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alice@Example.com", "alice@example.com"},
		{"  bob@example.com\t", "bob@example.com"},
		{"\n CAROL@EXAMPLE.COM \n", "carol@example.com"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		got := identity.Normalize(tt.in)
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if again := identity.Normalize(got); again != got {
			t.Errorf("Normalize not idempotent for %q: %q then %q", tt.in, got, again)
		}
	}
}

func TestRequire(t *testing.T) {
	id, err := identity.Require("jwt", " Dave@Example.com ")
	if err != nil {
		t.Fatalf("Require failed: %v", err)
	}
	if id != "dave@example.com" {
		t.Errorf("expected normalized identity, got %q", id)
	}

	_, err = identity.Require("jwt", "  ")
	if !errors.Is(err, apierr.ErrIdentityRequired) {
		t.Errorf("expected ErrIdentityRequired, got %v", err)
	}
	if !apierr.Is(err, apierr.KindValidation) {
		t.Errorf("expected validation kind, got %q", apierr.KindOf(err))
	}
}
