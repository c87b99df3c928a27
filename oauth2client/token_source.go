package oauth2client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/AmmannChristian/go-authsession/authsession"
)

// Logger is an interface for optional logging in TokenSource.
// Implementations can log early refresh events if desired.
type Logger interface {
	Printf(format string, args ...any)
}

// TokenSource exposes the token of an authsession.Authenticator as an
// oauth2.TokenSource, so it can drive oauth2.Transport and any library that
// accepts a TokenSource. Expired tokens are refreshed by the Authenticator.
//
// TokenSource is safe for concurrent use.
type TokenSource struct {
	auth         *authsession.Authenticator
	ctx          context.Context // used by Token, which has no context parameter
	mu           sync.Mutex
	expiryLeeway time.Duration
	now          func() time.Time
	logger       Logger // optional logger
}

// Option is a functional option for configuring TokenSource.
type Option func(*TokenSource)

// WithLogger sets a custom logger for early refresh events.
// If not set, no logging will occur.
func WithLogger(logger Logger) Option {
	return func(ts *TokenSource) {
		ts.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
// This is a convenience option that sets the logger to log.Default().
func WithLoggingEnabled() Option {
	return func(ts *TokenSource) {
		ts.logger = log.Default()
	}
}

// WithExpiryLeeway refreshes refreshable tokens that expire within d, before
// handing them out. Default: 0 (refresh only once the token has expired).
func WithExpiryLeeway(d time.Duration) Option {
	return func(ts *TokenSource) {
		ts.expiryLeeway = d
	}
}

// WithClock overrides the time source used for the leeway check.
func WithClock(now func() time.Time) Option {
	return func(ts *TokenSource) {
		ts.now = now
	}
}

// NewTokenSource creates a TokenSource backed by auth.
//
// Parameters:
//   - ctx: Context used by Token (values are kept, cancellation is not)
//   - auth: Authenticator that owns the token
//   - opts: Optional configuration options (WithLogger, WithExpiryLeeway, ...)
func NewTokenSource(ctx context.Context, auth *authsession.Authenticator, opts ...Option) *TokenSource {
	if ctx == nil {
		ctx = context.Background()
	} else {
		ctx = context.WithoutCancel(ctx)
	}

	ts := &TokenSource{
		auth: auth,
		ctx:  ctx,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// Token implements oauth2.TokenSource.
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	return ts.TokenWithContext(ts.ctx)
}

// TokenWithContext returns the current token, refreshing it first if it has
// expired (or expires within the leeway). ctx bounds the wait for the
// Authenticator's queue.
//
// Returns:
//   - *oauth2.Token: Usable token
//   - error: wraps authsession errors (ErrNotAuthorized, *OAuthError, ...)
func (ts *TokenSource) TokenWithContext(ctx context.Context) (*oauth2.Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.expiryLeeway > 0 {
		current, err := ts.auth.AccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("oauth2client: failed to get token: %w", err)
		}
		if current != nil && ts.expiresSoon(*current) {
			if ts.logger != nil {
				ts.logger.Printf("oauth2client: access token expires at %s, refreshing early",
					current.ExpiresAt.Format(time.RFC3339))
			}
			if err := ts.auth.InvalidateAccessToken(ctx); err != nil {
				return nil, fmt.Errorf("oauth2client: failed to get token: %w", err)
			}
		}
	}

	if err := ts.auth.AuthenticateRequest(ctx, discardHeader{}); err != nil {
		return nil, fmt.Errorf("oauth2client: failed to get token: %w", err)
	}

	current, err := ts.auth.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth2client: failed to get token: %w", err)
	}
	if current == nil {
		return nil, fmt.Errorf("oauth2client: failed to get token: %w", authsession.ErrNotAuthorized)
	}
	return ToOAuth2Token(*current), nil
}

// expiresSoon reports whether token is refreshable and about to expire but not
// expired yet. Expired tokens are left to the Authenticator.
func (ts *TokenSource) expiresSoon(token authsession.Token) bool {
	if !token.HasExpiry() || !token.Refreshable() {
		return false
	}
	now := ts.now()
	return !token.ExpiredAt(now) && token.ExpiresAt.Sub(now) <= ts.expiryLeeway
}

// NewClient returns an http.Client that authorizes requests with tokens from ts.
// If ctx carries an oauth2.HTTPClient, its transport is used as the base.
func NewClient(ctx context.Context, ts *TokenSource) *http.Client {
	return oauth2.NewClient(ctx, ts)
}

// ToOAuth2Token converts token to an oauth2.Token. A token without expiry
// becomes an oauth2.Token with zero Expiry, which never expires.
func ToOAuth2Token(token authsession.Token) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		Expiry:       token.ExpiresAt,
	}
}

// FromOAuth2Token converts an oauth2.Token, e.g. from oauth2.Config.Exchange,
// so it can be handed to Authenticator.AuthenticateWith. An empty token type
// becomes "Bearer".
func FromOAuth2Token(token *oauth2.Token) (authsession.Token, error) {
	if token == nil || token.AccessToken == "" {
		return authsession.Token{}, errors.New("oauth2client: token has no access token")
	}
	return authsession.Token{
		AccessToken:  token.AccessToken,
		TokenType:    token.Type(),
		ExpiresAt:    token.Expiry,
		RefreshToken: token.RefreshToken,
	}, nil
}

// discardHeader lets TokenSource run the authentication flow without a request.
type discardHeader struct{}

func (discardHeader) SetHeader(string, string) {}

var _ oauth2.TokenSource = (*TokenSource)(nil)
