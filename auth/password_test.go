package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	for _, p := range []string{"password123", "correct horse battery staple", "ünïcødé-pass", strings.Repeat("x", MaxPasswordBytes)} {
		digest, err := h.Hash(p)
		if err != nil {
			t.Fatalf("Hash(%q): %v", p, err)
		}
		if digest == p || strings.Contains(digest, p) {
			t.Fatalf("digest leaks plaintext")
		}
		if !h.Verify(p, digest) {
			t.Fatalf("Verify(%q) = false, want true", p)
		}
		if h.Verify(p+"!", digest) {
			t.Fatalf("Verify accepted a different password")
		}
	}
}

func TestHasher_SaltedDigests(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	a, _ := h.Hash("password123")
	b, _ := h.Hash("password123")
	if a == b {
		t.Fatalf("two digests of the same password should differ")
	}
	cost, err := bcrypt.Cost([]byte(a))
	if err != nil || cost != bcrypt.MinCost {
		t.Fatalf("digest should embed cost %d, got %d (%v)", bcrypt.MinCost, cost, err)
	}
}

func TestHasher_MalformedDigest(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	for _, d := range []string{"", "not-a-hash", "$2a$10$short"} {
		if h.Verify("password123", d) {
			t.Fatalf("Verify against %q should be false", d)
		}
	}
}

func TestHasher_DefaultCostAndLimit(t *testing.T) {
	if NewHasher(0).Cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost %d", bcrypt.DefaultCost)
	}
	if _, err := NewHasher(bcrypt.MinCost).Hash(strings.Repeat("x", MaxPasswordBytes+1)); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}
