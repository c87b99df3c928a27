package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// WriteTestCACert writes a self-signed CA certificate to the provided path for TLS tests.
func WriteTestCACert(tb testing.TB, path string) {
	tb.Helper()

	privateKey := generateKey(tb)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		Subject:               pkix.Name{CommonName: "test-ca"},
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		tb.Fatalf("failed to create CA certificate: %v", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		tb.Fatalf("failed to write CA certificate: %v", err)
	}
}

// WriteTestCertAndKey writes a self-signed certificate and key to the provided paths.
func WriteTestCertAndKey(tb testing.TB, certPath, keyPath string) {
	tb.Helper()

	privateKey := generateKey(tb)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		Subject:      pkix.Name{CommonName: "test-cert"},
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		tb.Fatalf("failed to create certificate: %v", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		tb.Fatalf("failed to write certificate: %v", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		tb.Fatalf("failed to write key: %v", err)
	}
}

func generateKey(tb testing.TB) *rsa.PrivateKey {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate key: %v", err)
	}
	return privateKey
}

// signingKey signs test access tokens. Parsers under test never verify signatures.
var signingKey = []byte("test-signing-key")

// JWTClaims provides a builder pattern for creating test access token claims.
type JWTClaims struct {
	claims jwt.MapClaims
}

// NewJWTClaims creates a new JWTClaims builder expiring in one hour.
func NewJWTClaims(subject string) *JWTClaims {
	return &JWTClaims{
		claims: jwt.MapClaims{
			"iss": "https://auth.example.com",
			"sub": subject,
			"exp": time.Now().Add(time.Hour).Unix(),
			"iat": time.Now().Add(-time.Minute).Unix(),
		},
	}
}

// WithExpiry sets a custom expiry time.
func (c *JWTClaims) WithExpiry(exp time.Time) *JWTClaims {
	c.claims["exp"] = exp.Unix()
	return c
}

// WithoutClaim removes a specific claim.
func (c *JWTClaims) WithoutClaim(key string) *JWTClaims {
	delete(c.claims, key)
	return c
}

// Sign returns the claims as a compact HS256 JWT.
func (c *JWTClaims) Sign(tb testing.TB) string {
	tb.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c.claims)
	tokenString, err := token.SignedString(signingKey)
	if err != nil {
		tb.Fatalf("failed to sign token: %v", err)
	}

	return tokenString
}
