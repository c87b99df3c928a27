package oauth2client

import (
	"testing"
	"time"

	"github.com/AmmannChristian/go-authsession/authsession"
	"github.com/AmmannChristian/go-authsession/internal/testutil"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestStandardParser(t *testing.T) {
	parser := StandardParser{Now: func() time.Time { return fixedNow }}

	tests := []struct {
		name       string
		body       string
		want       authsession.Token
		wantErr    bool
		wantExpiry time.Time
	}{
		{
			name:       "full response",
			body:       `{"access_token":"a","token_type":"Bearer","expires_in":3600,"refresh_token":"r","scope":"openid"}`,
			want:       authsession.Token{AccessToken: "a", TokenType: "Bearer", RefreshToken: "r"},
			wantExpiry: fixedNow.Add(time.Hour),
		},
		{
			name:       "expires_in as string",
			body:       `{"access_token":"a","token_type":"Bearer","expires_in":"60"}`,
			want:       authsession.Token{AccessToken: "a", TokenType: "Bearer"},
			wantExpiry: fixedNow.Add(time.Minute),
		},
		{
			name: "no expires_in",
			body: `{"access_token":"a","token_type":"bearer"}`,
			want: authsession.Token{AccessToken: "a", TokenType: "bearer"},
		},
		{
			name: "zero expires_in",
			body: `{"access_token":"a","token_type":"Bearer","expires_in":0}`,
			want: authsession.Token{AccessToken: "a", TokenType: "Bearer"},
		},
		{name: "missing access_token", body: `{"token_type":"Bearer"}`, wantErr: true},
		{name: "missing token_type", body: `{"access_token":"a"}`, wantErr: true},
		{name: "camel case", body: `{"accessToken":"a","tokenType":"Bearer"}`, wantErr: true},
		{name: "bad expires_in", body: `{"access_token":"a","token_type":"Bearer","expires_in":"soon"}`, wantErr: true},
		{name: "not json", body: `<html></html>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.Parse([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got.AccessToken != tt.want.AccessToken || got.TokenType != tt.want.TokenType || got.RefreshToken != tt.want.RefreshToken {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if !got.ExpiresAt.Equal(tt.wantExpiry) {
				t.Errorf("expiry = %v, want %v", got.ExpiresAt, tt.wantExpiry)
			}
		})
	}
}

func TestStandardParser_DefaultClock(t *testing.T) {
	before := time.Now()
	got, err := StandardParser{}.Parse([]byte(`{"access_token":"a","token_type":"Bearer","expires_in":10}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ExpiresAt.Before(before.Add(10 * time.Second)) {
		t.Errorf("expiry %v is earlier than expected", got.ExpiresAt)
	}
}

func TestJWTParser(t *testing.T) {
	exp := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	jwtToken := testutil.NewJWTClaims("alice").WithExpiry(exp).Sign(t)
	noExp := testutil.NewJWTClaims("alice").WithoutClaim("exp").Sign(t)

	tests := []struct {
		name       string
		parser     JWTParser
		body       string
		wantExpiry time.Time
		wantErr    bool
	}{
		{
			name:       "exp claim fills missing expiry",
			body:       `{"access_token":"` + jwtToken + `","token_type":"Bearer"}`,
			wantExpiry: exp,
		},
		{
			name:       "response expiry wins",
			parser:     JWTParser{Base: StandardParser{Now: func() time.Time { return fixedNow }}},
			body:       `{"access_token":"` + jwtToken + `","token_type":"Bearer","expires_in":60}`,
			wantExpiry: fixedNow.Add(time.Minute),
		},
		{
			name: "opaque token keeps no expiry",
			body: `{"access_token":"opaque","token_type":"Bearer"}`,
		},
		{
			name: "jwt without exp keeps no expiry",
			body: `{"access_token":"` + noExp + `","token_type":"Bearer"}`,
		},
		{
			name:       "custom base parser",
			parser:     JWTParser{Base: authsession.DefaultParser{}},
			body:       `{"accessToken":"` + jwtToken + `","tokenType":"Bearer"}`,
			wantExpiry: exp,
		},
		{
			name:    "base error is returned",
			body:    `{"token_type":"Bearer"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.parser.Parse([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.ExpiresAt.Equal(tt.wantExpiry) {
				t.Errorf("expiry = %v, want %v", got.ExpiresAt, tt.wantExpiry)
			}
		})
	}
}

func TestExpiryFromJWT(t *testing.T) {
	if _, ok := ExpiryFromJWT("not.a.jwt"); ok {
		t.Error("garbage must not yield an expiry")
	}
	if _, ok := ExpiryFromJWT(""); ok {
		t.Error("empty string must not yield an expiry")
	}

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := ExpiryFromJWT(testutil.NewJWTClaims("bob").WithExpiry(exp).Sign(t))
	if !ok || !got.Equal(exp) {
		t.Errorf("ExpiryFromJWT = %v, %v; want %v", got, ok, exp)
	}
}
