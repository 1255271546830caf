package crypto

import (
	"errors"
	"testing"
)

func TestHashPasswordRejectsShortSecrets(t *testing.T) {
	if _, err := HashPassword("  short "); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestComparePassword(t *testing.T) {
	hash, err := HashPassword("Chantier2024!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := ComparePassword(hash, "Chantier2024!"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := ComparePassword(hash, "wrong-password"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}
