package crypto

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordNeverStoresPlaintext(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(hash) == "hunter22" {
		t.Fatal("hash equals plaintext")
	}
	cost, err := bcrypt.Cost(hash)
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != 12 {
		t.Fatalf("expected cost factor 12, got %d", cost)
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !VerifyPassword(hash, "correct-horse-battery") {
		t.Fatal("matching plaintext must verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatal("mismatch must not verify")
	}
	if VerifyPassword(hash, "") {
		t.Fatal("empty plaintext must not verify")
	}
	if VerifyPassword([]byte("not-a-bcrypt-hash"), "anything") {
		t.Fatal("garbage hash must not verify")
	}
}

func TestHashPasswordSaltsEachCall(t *testing.T) {
	first, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(first) == string(second) {
		t.Fatal("two hashes of the same input must differ")
	}
}
