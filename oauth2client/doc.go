// Package oauth2client connects authsession to the golang.org/x/oauth2 ecosystem.
//
// It provides token response parsers for standard OAuth2 servers and an oauth2.TokenSource backed by
// an authsession.Authenticator, so the Authenticator's token (and its refresh logic) can drive
// oauth2.Transport and every library that accepts a TokenSource.
//
// # Features
//
//   - StandardParser for RFC 6749 responses (access_token, token_type, expires_in, refresh_token)
//   - JWTParser that falls back to the exp claim of JWT access tokens
//   - TokenSource with optional early refresh (WithExpiryLeeway)
//   - Conversion between authsession.Token and oauth2.Token
//   - Optional logging (WithLogger, WithLoggingEnabled)
//
// # Quick Start
//
//	auth, err := authsession.New(
//	    "https://auth.example.com/oauth/token",
//	    authsession.WithParser(oauth2client.StandardParser{}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ts := oauth2client.NewTokenSource(ctx, auth, oauth2client.WithExpiryLeeway(time.Minute))
//	client := oauth2client.NewClient(ctx, ts)
//
// # Notes
//
//   - TokenSource does not cache tokens; every call consults the Authenticator.
//   - JWTParser does not verify signatures.
package oauth2client
