// Package testutil provides test helpers for code built on go-authsession.
//
// # Utilities
//
//   - NewLocalHTTPServer: start httptest server bound to 127.0.0.1
//   - MockTokenEndpoint: stub token endpoint that records requests (method, headers, decoded form)
//   - RoundTripFunc: inline http.RoundTripper implementations
//   - JSONResponse / StaticJSONResponse / StatusJSONResponse: canned token endpoint responses
//
// MockTokenEndpoint never opens sockets; pass its Client() to authsession.NewHTTPConnector.
package testutil
