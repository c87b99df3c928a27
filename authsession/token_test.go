package authsession

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestToken_Copies(t *testing.T) {
	expiry := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	token := Token{AccessToken: "a", TokenType: "Bearer", ExpiresAt: expiry, RefreshToken: "r"}

	copied := token.WithAccessToken("A new token")
	if copied.AccessToken != "A new token" {
		t.Errorf("expected new access token, got %q", copied.AccessToken)
	}
	if token.AccessToken != "a" {
		t.Error("WithAccessToken must not modify the receiver")
	}
	if copied.TokenType != token.TokenType || !copied.ExpiresAt.Equal(token.ExpiresAt) || copied.RefreshToken != token.RefreshToken {
		t.Error("WithAccessToken must keep the other fields")
	}

	typed := copied.WithTokenType("MAC")
	if typed.TokenType != "MAC" || typed.AccessToken != copied.AccessToken {
		t.Errorf("unexpected WithTokenType result: %+v", typed)
	}

	later := expiry.Add(time.Hour)
	if got := typed.WithExpiresAt(later).ExpiresAt; !got.Equal(later) {
		t.Errorf("expected expiry %v, got %v", later, got)
	}
	if typed.WithoutExpiry().HasExpiry() {
		t.Error("WithoutExpiry should clear the expiry")
	}
	if got := typed.WithRefreshToken("r2").RefreshToken; got != "r2" {
		t.Errorf("expected refresh token r2, got %q", got)
	}
	if typed.WithoutRefreshToken().Refreshable() {
		t.Error("WithoutRefreshToken should clear the refresh token")
	}
}

func TestToken_ExpiredAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		token   Token
		expired bool
	}{
		{name: "no expiry", token: Token{AccessToken: "a"}, expired: false},
		{name: "future", token: Token{ExpiresAt: now.Add(time.Second)}, expired: false},
		{name: "exactly now", token: Token{ExpiresAt: now}, expired: false},
		{name: "past", token: Token{ExpiresAt: now.Add(-time.Second)}, expired: true},
		{name: "epoch", token: Token{ExpiresAt: time.Unix(0, 0)}, expired: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.ExpiredAt(now); got != tt.expired {
				t.Errorf("ExpiredAt() = %v, want %v", got, tt.expired)
			}
		})
	}
}

func TestToken_String_HidesSecrets(t *testing.T) {
	token := Token{AccessToken: "secret-access", TokenType: "Bearer", RefreshToken: "secret-refresh"}
	s := token.String()
	if strings.Contains(s, "secret-access") || strings.Contains(s, "secret-refresh") {
		t.Errorf("String() leaks secrets: %s", s)
	}
}

func TestToken_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Token
		wantErr bool
	}{
		{
			name: "numeric expiry",
			body: `{"accessToken":"a","tokenType":"Bearer","expiresAt":1767268800,"refreshToken":"r"}`,
			want: Token{AccessToken: "a", TokenType: "Bearer", ExpiresAt: time.Unix(1767268800, 0), RefreshToken: "r"},
		},
		{
			name: "fractional expiry",
			body: `{"accessToken":"a","tokenType":"Bearer","expiresAt":1767268800.5}`,
			want: Token{AccessToken: "a", TokenType: "Bearer", ExpiresAt: time.Unix(1767268800, int64(500*time.Millisecond))},
		},
		{
			name: "RFC 3339 expiry",
			body: `{"accessToken":"a","tokenType":"Bearer","expiresAt":"2026-01-01T12:00:00Z"}`,
			want: Token{AccessToken: "a", TokenType: "Bearer", ExpiresAt: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		},
		{
			name: "null expiry and refresh token",
			body: `{"accessToken":"a","tokenType":"Bearer","expiresAt":null,"refreshToken":null}`,
			want: Token{AccessToken: "a", TokenType: "Bearer"},
		},
		{
			name:    "missing access token",
			body:    `{"tokenType":"Bearer"}`,
			wantErr: true,
		},
		{
			name:    "missing token type",
			body:    `{"accessToken":"a"}`,
			wantErr: true,
		},
		{
			name:    "snake case is not understood",
			body:    `{"access_token":"a","token_type":"Bearer"}`,
			wantErr: true,
		},
		{
			name:    "bad expiry",
			body:    `{"accessToken":"a","tokenType":"Bearer","expiresAt":"tomorrow"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Token
			err := json.Unmarshal([]byte(tt.body), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got token %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.AccessToken != tt.want.AccessToken || got.TokenType != tt.want.TokenType ||
				got.RefreshToken != tt.want.RefreshToken || !got.ExpiresAt.Equal(tt.want.ExpiresAt) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestToken_MarshalJSON(t *testing.T) {
	token := Token{AccessToken: "a", TokenType: "Bearer", ExpiresAt: time.Unix(1767268800, 0)}

	data, err := json.Marshal(token)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	want := `{"accessToken":"a","tokenType":"Bearer","expiresAt":1767268800}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	parsed, err := DefaultParser{}.Parse(data)
	if err != nil {
		t.Fatalf("DefaultParser rejected marshalled token: %v", err)
	}
	if !parsed.ExpiresAt.Equal(token.ExpiresAt) {
		t.Errorf("expiry changed: %v != %v", parsed.ExpiresAt, token.ExpiresAt)
	}
}

func TestToken_FarFutureExpiryRoundTrip(t *testing.T) {
	expiresAt := time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)
	token := Token{AccessToken: "a", TokenType: "Bearer", ExpiresAt: expiresAt}

	data, err := json.Marshal(token)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	parsed, err := DefaultParser{}.Parse(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !parsed.ExpiresAt.Equal(expiresAt) {
		t.Errorf("expiry = %v, want %v", parsed.ExpiresAt, expiresAt)
	}
	if parsed.ExpiredAt(time.Now()) {
		t.Error("far-future token reported as expired")
	}
}

func TestUnixSeconds(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want float64
	}{
		{name: "epoch", in: time.Unix(0, 0), want: 0},
		{name: "fractional", in: time.Unix(1767268800, int64(250*time.Millisecond)), want: 1767268800.25},
		{name: "year 3000", in: time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC), want: 32503680000},
		{name: "before epoch", in: time.Unix(-10, int64(500*time.Millisecond)), want: -9.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UnixSeconds(tt.in); got != tt.want {
				t.Errorf("UnixSeconds = %v, want %v", got, tt.want)
			}
			if back := FromUnixSeconds(tt.want); !back.Equal(tt.in) {
				t.Errorf("FromUnixSeconds = %v, want %v", back, tt.in)
			}
		})
	}
}
