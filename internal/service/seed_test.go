package service

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestSeedAdmins(t *testing.T) {
	env := newTestAuth(t, nil)
	ctx := context.Background()
	hasher := NewBcryptHasher(bcrypt.MinCost)

	n, err := SeedAdmins(ctx, env.store, hasher, DefaultSeedAdmins(), nil)
	if err != nil {
		t.Fatalf("SeedAdmins: %v", err)
	}
	if n != 4 {
		t.Errorf("created %d, want 4", n)
	}

	// Second run is a no-op.
	n, err = SeedAdmins(ctx, env.store, hasher, DefaultSeedAdmins(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("re-seed created %d, want 0", n)
	}

	for _, sa := range DefaultSeedAdmins() {
		if err := ValidatePasswordStrength(sa.Password); err != nil {
			t.Errorf("seed password for %s fails strength rule: %v", sa.Email, err)
		}
		res, err := env.auth.Login(ctx, sa.Email, sa.Password)
		if err != nil {
			t.Errorf("login %s: %v", sa.Email, err)
			continue
		}
		if res.Admin.Role != sa.Role {
			t.Errorf("%s role = %s, want %s", sa.Email, res.Admin.Role, sa.Role)
		}
	}
}
