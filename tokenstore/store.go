package tokenstore

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/AmmannChristian/go-authsession/authsession"
)

// DefaultService is the namespace used when no service name is configured.
const DefaultService = "de.farbflash.authSession.authData"

// Entry keys of the persisted layout.
const (
	KeyAccessToken  = "access_token"
	KeyTokenType    = "token_type"
	KeyExpiresAt    = "expires_at"
	KeyRefreshToken = "refresh_token"
)

// Backend persists flat string entries per service namespace.
//
// Load returns nil (and no error) when nothing is stored for service. Save
// replaces the whole entry set of service in one atomic step; readers never
// observe a mix of old and new entries. Delete is idempotent.
type Backend interface {
	Load(ctx context.Context, service string) (map[string]string, error)
	Save(ctx context.Context, service string, entries map[string]string) error
	Delete(ctx context.Context, service string) error
}

// Store implements authsession.TokenStore on top of a Backend.
type Store struct {
	backend Backend
	service string
	logger  authsession.Logger
}

// Option is a functional option for configuring Store.
type Option func(*Store)

// WithService sets the namespace the token is stored under. Default: DefaultService.
func WithService(service string) Option {
	return func(s *Store) {
		s.service = service
	}
}

// WithLogger sets a logger for entries that cannot be decoded.
// If not set, no logging will occur.
func WithLogger(logger authsession.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store backed by backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	if s.service == "" {
		s.service = DefaultService
	}
	return s
}

// Service returns the namespace the token is stored under.
func (s *Store) Service() string {
	return s.service
}

// StoreToken implements authsession.TokenStore. A nil token deletes the namespace.
func (s *Store) StoreToken(ctx context.Context, token *authsession.Token) error {
	if token == nil {
		if err := s.backend.Delete(ctx, s.service); err != nil {
			return fmt.Errorf("tokenstore: delete %s: %w", s.service, err)
		}
		return nil
	}

	if err := s.backend.Save(ctx, s.service, Encode(*token)); err != nil {
		return fmt.Errorf("tokenstore: save %s: %w", s.service, err)
	}
	return nil
}

// RetrieveToken implements authsession.TokenStore.
func (s *Store) RetrieveToken(ctx context.Context) (*authsession.Token, error) {
	entries, err := s.backend.Load(ctx, s.service)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: load %s: %w", s.service, err)
	}

	token, ok := Decode(entries)
	if !ok {
		return nil, nil
	}
	if raw, set := entries[KeyExpiresAt]; set && !token.HasExpiry() && s.logger != nil {
		s.logger.Printf("tokenstore: ignoring unreadable %s %q for %s", KeyExpiresAt, raw, s.service)
	}
	return &token, nil
}

// Close closes the backend if it holds resources.
func (s *Store) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Encode converts token to the persisted entry layout. Absent optional fields
// are omitted.
func Encode(token authsession.Token) map[string]string {
	entries := map[string]string{
		KeyAccessToken: token.AccessToken,
		KeyTokenType:   token.TokenType,
	}
	if token.HasExpiry() {
		entries[KeyExpiresAt] = strconv.FormatFloat(authsession.UnixSeconds(token.ExpiresAt), 'f', -1, 64)
	}
	if token.Refreshable() {
		entries[KeyRefreshToken] = token.RefreshToken
	}
	return entries
}

// Decode rebuilds a token from persisted entries. It reports false when the
// access token or token type is missing. An expires_at that is not a decimal
// number is treated as absent.
func Decode(entries map[string]string) (authsession.Token, bool) {
	accessToken, ok := entries[KeyAccessToken]
	if !ok {
		return authsession.Token{}, false
	}
	tokenType, ok := entries[KeyTokenType]
	if !ok {
		return authsession.Token{}, false
	}

	token := authsession.Token{
		AccessToken:  accessToken,
		TokenType:    tokenType,
		RefreshToken: entries[KeyRefreshToken],
	}
	if raw, ok := entries[KeyExpiresAt]; ok {
		if secs, err := strconv.ParseFloat(raw, 64); err == nil {
			token.ExpiresAt = authsession.FromUnixSeconds(secs)
		}
	}
	return token, true
}

var _ authsession.TokenStore = (*Store)(nil)
