package grpcclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/AmmannChristian/go-authsession/authsession"
)

// Builder provides a fluent interface for constructing gRPC client connections
// with optional call authentication and TLS/mTLS support.
type Builder struct {
	address string

	// Authentication
	authenticator *authsession.Authenticator

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsServerName string

	// Additional dial options
	dialOpts []grpc.DialOption
}

// NewBuilder creates a new gRPC client builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithAddress sets the server address (e.g., "server.example.com:9090").
func (b *Builder) WithAddress(address string) *Builder {
	b.address = address
	return b
}

// WithAuthenticator authenticates every unary call and stream through a.
// The session's token is refreshed on demand; calls fail without being sent
// when no valid token can be obtained.
func (b *Builder) WithAuthenticator(a *authsession.Authenticator) *Builder {
	b.authenticator = a
	return b
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (required)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
//   - serverName: Expected server name for TLS verification (optional, overrides SNI)
func (b *Builder) WithTLS(caFile, certFile, keyFile, serverName string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	b.tlsServerName = serverName
	return b
}

// WithDialOptions adds custom gRPC dial options.
// These options are applied after the authentication and TLS options.
func (b *Builder) WithDialOptions(opts ...grpc.DialOption) *Builder {
	b.dialOpts = append(b.dialOpts, opts...)
	return b
}

// Build constructs the gRPC client connection with the configured options.
//
// Returns:
//   - *grpc.ClientConn: Established gRPC connection
//   - error: Error if connection fails
func (b *Builder) Build() (*grpc.ClientConn, error) {
	if b.address == "" {
		return nil, errors.New("grpcclient: server address is required")
	}

	var opts []grpc.DialOption

	// Add authentication interceptors if enabled
	if b.authenticator != nil {
		opts = append(opts,
			grpc.WithChainUnaryInterceptor(UnaryClientInterceptor(b.authenticator)),
			grpc.WithChainStreamInterceptor(StreamClientInterceptor(b.authenticator)),
		)
	}

	// Add TLS credentials if enabled
	if b.tlsEnabled {
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("grpcclient: TLS config failed: %w", err)
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(DefaultTransportCredentials()))
	}

	// Add custom dial options
	opts = append(opts, b.dialOpts...)

	// Create connection
	conn, err := grpc.NewClient(b.address, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: dial failed: %w", err)
	}

	return conn, nil
}

// DefaultTransportCredentials returns TLS 1.2+ credentials using the system
// roots. Build uses them unless WithTLS is set, so connections are never
// plaintext by accident.
func DefaultTransportCredentials() credentials.TransportCredentials {
	return credentials.NewTLS(&tls.Config{
		MinVersion: tls.VersionTLS12,
	})
}

// buildTLSConfig constructs the TLS configuration for the gRPC connection.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	// Load CA certificate for server verification
	if b.tlsCAFile != "" {
		caCert, err := os.ReadFile(b.tlsCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}

		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = certPool
	}

	// Load client certificate for mTLS (if both cert and key are provided)
	if b.tlsCertFile != "" && b.tlsKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(b.tlsCertFile, b.tlsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	} else if b.tlsCertFile != "" || b.tlsKeyFile != "" {
		return nil, errors.New("both TLS cert and key files must be provided for mTLS")
	}

	// Set server name override if provided
	if b.tlsServerName != "" {
		tlsConfig.ServerName = b.tlsServerName
	}

	return tlsConfig, nil
}
