// Package testutil provides internal test helpers for go-authsession packages.
//
// # Utilities
//
//   - WriteTestCACert / WriteTestCertAndKey: generate temporary CA and leaf certificates for TLS/mTLS tests
//   - JWTClaims: build and sign JWT access tokens for expiry extraction tests
package testutil
