package auth

import (
	"errors"
	"testing"

	"mutual/internal/domain"
)

func TestRequireOwner(t *testing.T) {
	if _, err := RequireOwner(domain.Identity{}); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}
	walletOnly := domain.Identity{Wallet: &domain.WalletIdentity{Address: "0xabc"}}
	if _, err := RequireOwner(walletOnly); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("wallet alone must not authenticate, got %v", err)
	}
	owner, err := RequireOwner(domain.Identity{OAuth: &domain.OAuthIdentity{Login: "Ada"}})
	if err != nil || owner != "github:ada" {
		t.Fatalf("owner = %q, %v", owner, err)
	}
	owner, err = RequireOwner(domain.Identity{OAuth: &domain.OAuthIdentity{Email: "Ada@Example.com"}})
	if err != nil || owner != "email:ada@example.com" {
		t.Fatalf("owner = %q, %v", owner, err)
	}
}

func TestEnsureOwns(t *testing.T) {
	d := domain.Draft{ID: "d1", Owner: "github:ada"}
	if err := EnsureOwns("github:ada", d); err != nil {
		t.Fatalf("owner rejected: %v", err)
	}
	var fe ForbiddenError
	if err := EnsureOwns("github:bob", d); !errors.As(err, &fe) || fe.DraftID != "d1" {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
