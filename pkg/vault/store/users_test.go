package store

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/vaultsync/internal/auth"
	"github.com/marmos91/vaultsync/pkg/vault/models"
)

func TestCreateUser(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s, "alice@example.com")
	if user.ID == 0 {
		t.Error("expected assigned user id")
	}

	t.Run("duplicate email fails", func(t *testing.T) {
		err := s.CreateUser(ctx, &models.User{
			Email:    "alice@example.com",
			Password: "x",
			Salt:     "y",
		})
		if !errors.Is(err, models.ErrDuplicateUser) {
			t.Errorf("expected ErrDuplicateUser, got %v", err)
		}
	})
}

func TestValidateCredentials(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	salt, err := auth.GenerateSecret(auth.SecretLength)
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	hash, err := auth.HashPassword("hunter2", salt)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	user := &models.User{
		Email:    "bob@example.com",
		Password: hash,
		Salt:     salt,
		Name:     "Bob",
	}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	t.Run("valid", func(t *testing.T) {
		got, err := s.ValidateCredentials(ctx, "bob@example.com", "hunter2")
		if err != nil {
			t.Fatalf("ValidateCredentials: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("expected user %d, got %d", user.ID, got.ID)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := s.ValidateCredentials(ctx, "bob@example.com", "hunter3")
		if !errors.Is(err, models.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown user maps to invalid credentials", func(t *testing.T) {
		_, err := s.ValidateCredentials(ctx, "nobody@example.com", "hunter2")
		if !errors.Is(err, models.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestTokens(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s, "carol@example.com")

	token, err := s.CreateToken(ctx, user.ID)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if len(token.Token) != 32 {
		t.Errorf("expected 32-char hex token, got %q", token.Token)
	}

	t.Run("resolve with user preloaded", func(t *testing.T) {
		got, err := s.GetUserToken(ctx, token.Token)
		if err != nil {
			t.Fatalf("GetUserToken: %v", err)
		}
		if got.User.Email != "carol@example.com" {
			t.Errorf("expected preloaded user, got %+v", got.User)
		}
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := s.GetUserToken(ctx, "")
		if !errors.Is(err, models.ErrTokenMissing) {
			t.Errorf("expected ErrTokenMissing, got %v", err)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := s.GetUserToken(ctx, "deadbeefdeadbeefdeadbeefdeadbeef")
		if !errors.Is(err, models.ErrTokenNotFound) {
			t.Errorf("expected ErrTokenNotFound, got %v", err)
		}
	})

	t.Run("delete revokes", func(t *testing.T) {
		if err := s.DeleteToken(ctx, token.Token); err != nil {
			t.Fatalf("DeleteToken: %v", err)
		}
		if _, err := s.GetUserToken(ctx, token.Token); !errors.Is(err, models.ErrTokenNotFound) {
			t.Errorf("expected ErrTokenNotFound after revoke, got %v", err)
		}
		// Sign-out is idempotent.
		if err := s.DeleteToken(ctx, token.Token); err != nil {
			t.Errorf("second DeleteToken must not fail, got %v", err)
		}
	})
}
