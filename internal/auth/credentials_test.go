package auth

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestHashVerify(t *testing.T) {
	c := NewCredentials("secret", time.Hour).WithCost(bcrypt.MinCost)
	digest, err := c.Hash("Passw0rd!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if digest == "Passw0rd!" {
		t.Fatalf("digest equals secret")
	}
	if !c.Verify("Passw0rd!", digest) {
		t.Fatalf("verify failed for correct secret")
	}
	if c.Verify("wrong", digest) {
		t.Fatalf("verify passed for wrong secret")
	}
}

func TestIssueParseToken(t *testing.T) {
	c := NewCredentials("secret", time.Hour)
	tok, err := c.IssueToken("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	sub, err := c.ParseToken(tok)
	if err != nil || sub != "user-1" {
		t.Fatalf("parse: %q %v", sub, err)
	}

	other := NewCredentials("other", time.Hour)
	if _, err := other.ParseToken(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign key accepted: %v", err)
	}
	if _, err := c.ParseToken("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage accepted: %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	c := NewCredentials("secret", time.Minute)
	past := time.Now().Add(-time.Hour)
	c.now = func() time.Time { return past }
	tok, err := c.IssueToken("user-1")
	if err != nil {
		t.Fatal(err)
	}
	c.now = time.Now
	if _, err := c.ParseToken(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token accepted: %v", err)
	}
}
