package userplane

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"inboxguard/config"
	"inboxguard/pkg/crypto"
)

func newTestTokenStore(t *testing.T) *TokenStore {
	t.Helper()
	enc, err := crypto.NewEncryptor([]byte("test-encryption-key-32-bytes!!"))
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	cfg := &config.Config{DataRoot: t.TempDir()}
	return NewTokenStore(cfg, enc)
}

func TestTokenStoreSaveAndLoadRoundtrips(t *testing.T) {
	s := newTestTokenStore(t)

	tok := &oauth2.Token{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
	}
	if err := s.Save("alice", tok); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.AccessToken != tok.AccessToken || got.RefreshToken != tok.RefreshToken {
		t.Errorf("Load returned %+v, want matching %+v", got, tok)
	}
}

func TestTokenStoreEncryptsOnDisk(t *testing.T) {
	s := newTestTokenStore(t)

	if err := s.Save("alice", &oauth2.Token{AccessToken: "plain-secret", RefreshToken: "plain-refresh"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(s.dir, "alice.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(raw) == "" {
		t.Fatal("expected a non-empty token file")
	}
	var probe struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if probe.AccessToken == "plain-secret" {
		t.Fatal("expected the access token to be encrypted on disk")
	}
}

func TestTokenStoreTreatsPlaintextAsLegacy(t *testing.T) {
	s := newTestTokenStore(t)
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	raw, _ := json.Marshal(storedToken{AccessToken: "legacy-plain", TokenType: "Bearer"})
	if err := os.WriteFile(filepath.Join(s.dir, "bob.json"), raw, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := s.Load("bob")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.AccessToken != "legacy-plain" {
		t.Errorf("AccessToken = %q, want legacy-plain", got.AccessToken)
	}
}

func TestTokenStoreDeleteIsIdempotent(t *testing.T) {
	s := newTestTokenStore(t)
	if err := s.Delete("nobody"); err != nil {
		t.Fatalf("Delete on a missing token should be a no-op: %v", err)
	}
}
