package security

import (
	"testing"
	"time"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("secret"))
	token, exp, err := Generate(opts, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) <= 0 {
		t.Fatal("expiry already past")
	}
	sub, err := VerifySubject(opts, token)
	if err != nil {
		t.Fatal(err)
	}
	if sub != "u1" {
		t.Fatalf("sub=%s, want u1", sub)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, _, err := Generate(DefaultOptions([]byte("secret-a")), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifySubject(DefaultOptions([]byte("secret-b")), token); err == nil {
		t.Fatal("expected verification failure")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	opts := Options{Secret: []byte("secret"), TTL: time.Millisecond}
	token, _, err := Generate(opts, "u1")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := VerifySubject(opts, token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	if _, err := VerifySubject(DefaultOptions([]byte("secret")), "not.a.jwt"); err == nil {
		t.Fatal("expected parse failure")
	}
}
