package authsession

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Token is an access token together with its type, expiry and optional refresh token.
//
// Token is a value: the With* methods return modified copies and never change the receiver.
// A zero ExpiresAt means the token carries no expiry; an empty RefreshToken means none is present.
type Token struct {
	AccessToken  string    `json:"accessToken"`
	TokenType    string    `json:"tokenType"`
	ExpiresAt    time.Time `json:"expiresAt"`
	RefreshToken string    `json:"refreshToken"`
}

// HasExpiry reports whether the token carries an expiry timestamp.
func (t Token) HasExpiry() bool {
	return !t.ExpiresAt.IsZero()
}

// ExpiredAt reports whether the token is expired at the given instant.
// A token without expiry never expires; a token whose expiry equals now is still valid.
func (t Token) ExpiredAt(now time.Time) bool {
	return t.HasExpiry() && t.ExpiresAt.Before(now)
}

// Refreshable reports whether the token carries a non-empty refresh token.
func (t Token) Refreshable() bool {
	return t.RefreshToken != ""
}

// WithAccessToken returns a copy of t using the given access token.
func (t Token) WithAccessToken(accessToken string) Token {
	t.AccessToken = accessToken
	return t
}

// WithTokenType returns a copy of t using the given token type.
func (t Token) WithTokenType(tokenType string) Token {
	t.TokenType = tokenType
	return t
}

// WithExpiresAt returns a copy of t expiring at the given instant.
func (t Token) WithExpiresAt(expiresAt time.Time) Token {
	t.ExpiresAt = expiresAt
	return t
}

// WithoutExpiry returns a copy of t that never expires.
func (t Token) WithoutExpiry() Token {
	t.ExpiresAt = time.Time{}
	return t
}

// WithRefreshToken returns a copy of t using the given refresh token.
func (t Token) WithRefreshToken(refreshToken string) Token {
	t.RefreshToken = refreshToken
	return t
}

// WithoutRefreshToken returns a copy of t without a refresh token.
func (t Token) WithoutRefreshToken() Token {
	t.RefreshToken = ""
	return t
}

// String hides the secrets so tokens can be logged safely.
func (t Token) String() string {
	expiry := "never"
	if t.HasExpiry() {
		expiry = t.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("Token{type=%s, expires=%s, refreshable=%t}", t.TokenType, expiry, t.Refreshable())
}

type tokenJSON struct {
	AccessToken  *string         `json:"accessToken"`
	TokenType    *string         `json:"tokenType"`
	ExpiresAt    json.RawMessage `json:"expiresAt,omitempty"`
	RefreshToken *string         `json:"refreshToken,omitempty"`
}

// MarshalJSON encodes the token with its own field names. ExpiresAt is written
// as seconds since the Unix epoch and omitted when absent.
func (t Token) MarshalJSON() ([]byte, error) {
	out := struct {
		AccessToken  string   `json:"accessToken"`
		TokenType    string   `json:"tokenType"`
		ExpiresAt    *float64 `json:"expiresAt,omitempty"`
		RefreshToken string   `json:"refreshToken,omitempty"`
	}{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
	}
	if t.HasExpiry() {
		secs := UnixSeconds(t.ExpiresAt)
		out.ExpiresAt = &secs
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a token object using the token's own field names.
// accessToken and tokenType are required. expiresAt may be a number of seconds
// since the Unix epoch or an RFC 3339 string; null or missing means no expiry.
func (t *Token) UnmarshalJSON(data []byte) error {
	var raw tokenJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.AccessToken == nil {
		return errors.New("missing accessToken")
	}
	if raw.TokenType == nil {
		return errors.New("missing tokenType")
	}

	expiresAt, err := decodeExpiry(raw.ExpiresAt)
	if err != nil {
		return fmt.Errorf("expiresAt: %w", err)
	}

	*t = Token{
		AccessToken: *raw.AccessToken,
		TokenType:   *raw.TokenType,
		ExpiresAt:   expiresAt,
	}
	if raw.RefreshToken != nil {
		t.RefreshToken = *raw.RefreshToken
	}
	return nil
}

func decodeExpiry(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		return time.Parse(time.RFC3339Nano, s)
	}

	var secs float64
	if err := json.Unmarshal(raw, &secs); err != nil {
		return time.Time{}, err
	}
	return FromUnixSeconds(secs), nil
}

// UnixSeconds converts t to fractional seconds since the Unix epoch.
// Unlike UnixNano it covers the whole time.Time range.
func UnixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// FromUnixSeconds converts fractional seconds since the Unix epoch to a time.
func FromUnixSeconds(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*float64(time.Second))))
}
