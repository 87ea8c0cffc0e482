package interceptors

import (
	"context"
	"testing"
)

func TestWithIdentity_SetsAllValues(t *testing.T) {
	ctx := WithIdentity(context.Background(), "user-1", "jti-1")

	userID, ok := GetUserID(ctx)
	if !ok {
		t.Fatal("GetUserID should return true")
	}
	if userID != "user-1" {
		t.Errorf("user_id = %q, want %q", userID, "user-1")
	}
	tokenID, ok := GetTokenID(ctx)
	if !ok {
		t.Fatal("GetTokenID should return true")
	}
	if tokenID != "jti-1" {
		t.Errorf("token_id = %q, want %q", tokenID, "jti-1")
	}
}

func TestGetUserID_ReturnsFalseWhenNotSet(t *testing.T) {
	userID, ok := GetUserID(context.Background())
	if ok {
		t.Error("GetUserID should return false when not set")
	}
	if userID != "" {
		t.Errorf("user_id = %q, want empty string", userID)
	}
}

func TestGetUserID_EmptyValueIsNotAnIdentity(t *testing.T) {
	ctx := WithIdentity(context.Background(), "", "")
	if _, ok := GetUserID(ctx); ok {
		t.Error("GetUserID should return false for an empty user id")
	}
	if _, ok := GetTokenID(ctx); ok {
		t.Error("GetTokenID should return false for an empty token id")
	}
}

func TestWithIdentity_OverwritesPrevious(t *testing.T) {
	ctx := WithIdentity(context.Background(), "user-1", "jti-1")
	ctx = WithIdentity(ctx, "user-2", "jti-2")
	if userID, _ := GetUserID(ctx); userID != "user-2" {
		t.Errorf("user_id = %q, want %q", userID, "user-2")
	}
}
