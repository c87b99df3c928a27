package oauth2client

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AmmannChristian/go-authsession/authsession"
)

// tokenResponse is the successful token response of RFC 6749, section 5.1.
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    json.Number `json:"expires_in"`
	RefreshToken string      `json:"refresh_token"`
}

// StandardParser decodes RFC 6749 token responses (access_token, token_type,
// expires_in, refresh_token). The relative expires_in is turned into an absolute
// expiry using Now; a missing or non-positive expires_in means no expiry.
type StandardParser struct {
	// Now returns the current time. If nil, time.Now is used.
	Now func() time.Time
}

// Parse implements authsession.TokenParser.
func (p StandardParser) Parse(body []byte) (authsession.Token, error) {
	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return authsession.Token{}, fmt.Errorf("decode token response: %w", err)
	}
	if resp.AccessToken == "" {
		return authsession.Token{}, errors.New("token response has no access_token")
	}
	if resp.TokenType == "" {
		return authsession.Token{}, errors.New("token response has no token_type")
	}

	token := authsession.Token{
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		RefreshToken: resp.RefreshToken,
	}

	if resp.ExpiresIn != "" {
		secs, err := resp.ExpiresIn.Float64()
		if err != nil {
			return authsession.Token{}, fmt.Errorf("invalid expires_in %q: %w", resp.ExpiresIn, err)
		}
		if secs > 0 {
			now := time.Now
			if p.Now != nil {
				now = p.Now
			}
			token.ExpiresAt = now().Add(time.Duration(secs * float64(time.Second)))
		}
	}

	return token, nil
}

// JWTParser decodes a token response with Base and, when the response carries
// no expiry, takes it from the exp claim of a JWT access token. The JWT
// signature is not verified.
type JWTParser struct {
	// Base parses the response body. If nil, StandardParser is used.
	Base authsession.TokenParser
}

// Parse implements authsession.TokenParser.
func (p JWTParser) Parse(body []byte) (authsession.Token, error) {
	base := p.Base
	if base == nil {
		base = StandardParser{}
	}

	token, err := base.Parse(body)
	if err != nil {
		return authsession.Token{}, err
	}
	if token.HasExpiry() {
		return token, nil
	}

	if exp, ok := ExpiryFromJWT(token.AccessToken); ok {
		token.ExpiresAt = exp
	}
	return token, nil
}

// ExpiryFromJWT returns the exp claim of an unverified compact JWT. It reports
// false if raw is not a JWT or has no exp claim.
func ExpiryFromJWT(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

var (
	_ authsession.TokenParser = StandardParser{}
	_ authsession.TokenParser = JWTParser{}
)
