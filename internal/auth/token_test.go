package auth

import "testing"

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, _, err := tm.GenerateToken("admin-1", RoleDispatcher)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ActorID != "admin-1" || claims.Role != RoleDispatcher {
		t.Errorf("claims mismatch: %+v", claims)
	}
}

func TestTokenWrongSecretRejected(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 60).GenerateToken("admin-1", RoleAdmin)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewTokenManager("secret-b", 60).ParseToken(token); err == nil {
		t.Error("token signed with a different secret accepted")
	}
}

func TestTokenExpiredRejected(t *testing.T) {
	tm := &TokenManager{secret: []byte("test-secret"), ttl: -1}
	token, _, err := tm.GenerateToken("admin-1", RoleAdmin)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := tm.ParseToken(token); err == nil {
		t.Error("expired token accepted")
	}
}
