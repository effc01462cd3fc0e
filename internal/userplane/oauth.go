package userplane

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"inboxguard/config"
	"inboxguard/internal/mailprovider"
	"inboxguard/pkg/apperr"
	"inboxguard/pkg/crypto"
)

// storedToken is the JSON shape written to disk, with AccessToken and
// RefreshToken individually encrypted rather than the whole blob, so a
// corrupt or legacy-plaintext value on one field doesn't take the other
// down with it.
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

// TokenStore persists one OAuth token per user as an encrypted file under
// cfg.TokensDir(), the file-based counterpart to a single-row oauth table:
// this service has no Postgres, so the encrypt-at-rest idiom that guarded a
// table column there guards a file here instead.
type TokenStore struct {
	dir       string
	encryptor *crypto.Encryptor
}

func NewTokenStore(cfg *config.Config, encryptor *crypto.Encryptor) *TokenStore {
	return &TokenStore{dir: cfg.TokensDir(), encryptor: encryptor}
}

func (s *TokenStore) path(userID string) string {
	return filepath.Join(s.dir, userID+".json")
}

// Save encrypts and writes tok for userID, replacing any prior token.
func (s *TokenStore) Save(userID string, tok *oauth2.Token) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return apperr.InternalWithError(err)
	}

	access, err := s.encryptor.EncryptToken(tok.AccessToken)
	if err != nil {
		return apperr.InternalWithError(err)
	}
	refresh, err := s.encryptor.EncryptToken(tok.RefreshToken)
	if err != nil {
		return apperr.InternalWithError(err)
	}

	raw, err := json.Marshal(storedToken{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	})
	if err != nil {
		return apperr.InternalWithError(err)
	}

	tmp := s.path(userID) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return apperr.InternalWithError(err)
	}
	return os.Rename(tmp, s.path(userID))
}

// Load reads and decrypts userID's stored token. A token whose fields are
// not ciphertext (crypto.IsEncrypted reports false) is tolerated as
// plaintext, for tokens written before encryption was introduced.
func (s *TokenStore) Load(userID string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(s.path(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.NotFound("oauth token")
		}
		return nil, apperr.InternalWithError(err)
	}

	var st storedToken
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, apperr.InternalWithError(err)
	}

	access, err := s.decryptField(st.AccessToken)
	if err != nil {
		return nil, err
	}
	refresh, err := s.decryptField(st.RefreshToken)
	if err != nil {
		return nil, err
	}

	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    st.TokenType,
		Expiry:       st.Expiry,
	}, nil
}

func (s *TokenStore) decryptField(v string) (string, error) {
	if v == "" {
		return "", nil
	}
	if !crypto.IsEncrypted(v) {
		return v, nil
	}
	out, err := s.encryptor.DecryptToken(v)
	if err != nil {
		return "", apperr.InternalWithError(err)
	}
	return out, nil
}

func (s *TokenStore) Delete(userID string) error {
	err := os.Remove(s.path(userID))
	if err != nil && !os.IsNotExist(err) {
		return apperr.InternalWithError(err)
	}
	return nil
}

// OAuthManager drives the Google authorization code exchange and the
// subsequent token refresh, the flow mailprovider.GmailOAuthConfig is built
// for but deliberately does not own itself.
type OAuthManager struct {
	oauthConfig *oauth2.Config
	tokens      *TokenStore
}

func NewOAuthManager(cfg *config.Config, redirectURL string, tokens *TokenStore) *OAuthManager {
	return &OAuthManager{oauthConfig: mailprovider.GmailOAuthConfig(cfg, redirectURL), tokens: tokens}
}

// AuthURL returns the Google consent URL for userID, with state set so the
// callback can be tied back to the user who started the flow.
func (m *OAuthManager) AuthURL(state string) string {
	return m.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and persists it for
// userID.
func (m *OAuthManager) Exchange(ctx context.Context, userID, code string) error {
	tok, err := m.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeExternalError, "exchange oauth code")
	}
	return m.tokens.Save(userID, tok)
}

// Token returns a valid, refreshed-if-necessary token for userID,
// persisting the refreshed token back to disk whenever the oauth2
// TokenSource minted a new one.
func (m *OAuthManager) Token(ctx context.Context, userID string) (*oauth2.Token, error) {
	tok, err := m.tokens.Load(userID)
	if err != nil {
		return nil, err
	}

	source := m.oauthConfig.TokenSource(ctx, tok)
	fresh, err := source.Token()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeExternalError, "refresh oauth token")
	}
	if fresh.AccessToken != tok.AccessToken {
		if err := m.tokens.Save(userID, fresh); err != nil {
			return nil, fmt.Errorf("persist refreshed token: %w", err)
		}
	}
	return fresh, nil
}

func (m *OAuthManager) Disconnect(userID string) error {
	return m.tokens.Delete(userID)
}
