// Package authsession provides a client-side OAuth2 token authenticator.
//
// An Authenticator holds exactly one access token, adds it to outgoing requests and refreshes it
// transparently when it has expired. Every operation that may change the stored token runs on an
// internal FIFO queue, so concurrent callers that all observe an expired token cause a single
// refresh request, and later callers see the refreshed token.
//
// # Features
//
//   - Password, refresh, access-token-as-refresh and extension grants
//   - Client authentication via HTTP Basic (id + secret) or client_id parameter (id only)
//   - Structured OAuth errors (RFC 6749, section 5.2) and a typed error taxonomy
//   - Pluggable TokenStore, TokenParser, ServerConnector and RequestAuthenticator
//   - Fail-closed refresh: any refresh failure clears the stored token
//   - Optional logging (WithLogger, WithLoggingEnabled)
//
// # Quick Start
//
//	auth, err := authsession.New(
//	    "https://auth.example.com/oauth/token",
//	    authsession.WithCredentials(authsession.Credentials{ID: "client-id", Secret: "client-secret"}),
//	    authsession.WithLoggingEnabled(),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := auth.RequestAccessToken(ctx, "alice", "s3cr3t"); err != nil {
//	    log.Fatal(err)
//	}
//
//	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.example.com/me", nil)
//	if err := auth.AuthenticateRequest(ctx, authsession.Header(req.Header)); err != nil {
//	    log.Fatal(err)
//	}
//
// # Notes
//
//   - The default TokenParser expects the token's own field names (accessToken, tokenType,
//     expiresAt, refreshToken). Use oauth2client.StandardParser for RFC 6749 responses.
//   - The default TokenStore keeps the token in memory; see package tokenstore for persistent stores.
//   - The core never retries and never times out on its own; configure timeouts on the connector.
package authsession
