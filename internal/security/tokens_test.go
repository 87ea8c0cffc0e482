package security

import (
	"testing"
	"time"
)

func TestTokenProvider_IssueAndValidateAccess(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	access, jti, exp, err := p.IssueAccess("u1", "ann@example.com")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if access == "" || jti == "" {
		t.Fatal("access token or jti empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}
	uid, gotJti, err := p.ValidateAccess(access)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if uid != "u1" || gotJti != jti {
		t.Errorf("ValidateAccess: got userID=%q jti=%q", uid, gotJti)
	}
}

func TestTokenProvider_ValidateAccessInvalid(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	if _, _, err := p.ValidateAccess("invalid-token"); err != ErrInvalidToken {
		t.Errorf("ValidateAccess invalid token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_ValidateAccessExpired(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	issued := time.Now().Add(-time.Hour)
	p.now = func() time.Time { return issued }
	token, _, _, err := p.IssueAccess("u1", "")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	p.now = time.Now
	if _, _, err := p.ValidateAccess(token); err != ErrInvalidToken {
		t.Errorf("expired token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_ValidateAccessWrongAudience(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	other := NewTokenProvider(p.privateKey, p.publicKey, p.issuer, "another-audience", time.Minute)
	token, _, _, err := other.IssueAccess("u1", "")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, _, err := p.ValidateAccess(token); err != ErrInvalidToken {
		t.Errorf("foreign audience: want ErrInvalidToken, got %v", err)
	}
}
