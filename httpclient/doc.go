// Package httpclient offers HTTP client construction helpers that authenticate requests through an
// authsession.Authenticator, with TLS/mTLS options and a retrying token connector.
//
// It provides a fluent Builder that can create an http.Client whose requests carry the session's access
// token, refreshing it on demand, plus configurable TLS (custom CA, mTLS, insecure for tests), timeouts,
// base transports and redirect handling. AuthTransport can wrap any RoundTripper.
//
// # Features
//
//   - Fluent builder for http.Client with optional request authentication
//   - TLS 1.2+ by default, with custom CA/mTLS and optional InsecureSkipVerify
//   - Custom timeouts, base transport override, and redirect disabling
//   - BuildConnector for sending token requests over the same TLS settings
//   - RetryConnector with exponential backoff for transient token endpoint failures
//
// # Quick Start
//
//	connector, err := httpclient.NewBuilder().
//	    WithTLS("/path/to/ca.crt", "", "").
//	    WithRetry(3).
//	    BuildConnector()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	auth, err := authsession.New("https://auth.example.com/oauth/token",
//	    authsession.WithConnector(connector))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer auth.Close()
//
//	if _, err := auth.RequestAccessToken(ctx, "user", "password"); err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := httpclient.NewBuilder().
//	    WithAuthenticator(auth).
//	    WithTLS("/path/to/ca.crt", "", "").
//	    WithTimeout(60 * time.Second).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Get("https://api.example.com/data")
//
// # Manual Transport Wrapping
//
//	transport := httpclient.NewAuthTransport(auth, nil)
//	client := &http.Client{Transport: transport}
//
// Requests are not sent when authentication fails; the Authenticator's error is returned wrapped,
// so errors.Is(err, authsession.ErrNotAuthorized) tells callers to sign in again.
//
// All components are safe for concurrent use.
package httpclient
