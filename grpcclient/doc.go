// Package grpcclient provides a fluent builder for secure gRPC client connections whose calls are
// authenticated through an authsession.Authenticator.
//
// It defaults to TLS 1.2+ using system roots to avoid accidental plaintext connections. Optional
// methods let you add the authentication interceptors, custom CA or mTLS credentials, and extra dial
// options. The interceptors are also exported for use with grpc.NewClient directly.
//
// # Features
//
//   - Fluent builder for gRPC clients
//   - Unary and stream interceptors that refresh expired tokens before the call is started
//   - Secure-by-default TLS; optional custom CA and mTLS
//   - Additional dial options via WithDialOptions
//
// # Quick Start
//
//	auth, err := authsession.New("https://auth.example.com/oauth/token")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer auth.Close()
//
//	conn, err := grpcclient.NewBuilder().
//	    WithAddress("server.example.com:9090").
//	    WithAuthenticator(auth).
//	    WithTLS("/path/to/ca.crt", "", "", "server.example.com").
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	client := pb.NewYourServiceClient(conn)
//
// Calls fail before reaching the server when the session has no usable token; the error wraps the
// Authenticator's, e.g. authsession.ErrNotAuthorized.
//
// # TLS Behavior
//
// TLS is enabled by default with system CAs and TLS 1.2 minimum. WithTLS allows supplying a custom
// root CA and optional client cert/key for mTLS; both cert and key must be provided together.
package grpcclient
