package auth

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestHashPasswordDeterministic(t *testing.T) {
	h1, err := HashPassword("correct horse", "salt-salt-salt-salt-")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("correct horse", "salt-salt-salt-salt-")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h1 != h2 {
		t.Error("same password and salt must produce the same hash")
	}
	if len(h1) != 64 { // 32-byte key, hex encoded
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
	if h1 != strings.ToLower(h1) {
		t.Error("hash must be lowercase hex")
	}
}

func TestHashPasswordSaltMatters(t *testing.T) {
	h1, _ := HashPassword("pw", "salt-a")
	h2, _ := HashPassword("pw", "salt-b")
	if h1 == h2 {
		t.Error("different salts must produce different hashes")
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("secret", "pepper")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if !VerifyPassword("secret", "pepper", hash) {
		t.Error("correct password must verify")
	}
	if VerifyPassword("wrong", "pepper", hash) {
		t.Error("wrong password must not verify")
	}
	if VerifyPassword("secret", "nutmeg", hash) {
		t.Error("wrong salt must not verify")
	}
}

func TestKeyHashShape(t *testing.T) {
	kh, err := KeyHash("vault password", "vault salt")
	if err != nil {
		t.Fatalf("KeyHash: %v", err)
	}
	if len(kh) != 64 {
		t.Errorf("expected sha256 hex (64 chars), got %d", len(kh))
	}
	if _, err := hex.DecodeString(kh); err != nil {
		t.Errorf("keyhash is not hex: %v", err)
	}

	ph, _ := HashPassword("vault password", "vault salt")
	if kh == ph {
		t.Error("keyhash must be sha256 of the scrypt key, not the key itself")
	}
}

func TestGenerateToken(t *testing.T) {
	tok := GenerateToken()
	if len(tok) != 32 {
		t.Errorf("expected 32 hex chars for a 128-bit token, got %d", len(tok))
	}
	if _, err := hex.DecodeString(tok); err != nil {
		t.Errorf("token is not hex: %v", err)
	}
	if tok == GenerateToken() {
		t.Error("tokens must be random")
	}
}

func TestGenerateSecret(t *testing.T) {
	s, err := GenerateSecret(SecretLength)
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if len(s) != SecretLength {
		t.Errorf("expected %d chars, got %d", SecretLength, len(s))
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '!' || s[i] > '~' {
			t.Errorf("secret contains non-printable byte %q", s[i])
		}
	}
}

func TestConstantTimeEquals(t *testing.T) {
	if !ConstantTimeEquals("abc", "abc") {
		t.Error("equal strings must compare equal")
	}
	if ConstantTimeEquals("abc", "abd") || ConstantTimeEquals("abc", "ab") {
		t.Error("unequal strings must compare unequal")
	}
}
