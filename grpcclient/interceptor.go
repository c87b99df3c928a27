package grpcclient

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/AmmannChristian/go-authsession/authsession"
)

// Metadata adapts gRPC metadata to authsession.HeaderSetter. Keys are
// lower-cased, as gRPC requires.
type Metadata metadata.MD

// SetHeader implements authsession.HeaderSetter.
func (m Metadata) SetHeader(name, value string) {
	metadata.MD(m).Set(name, value)
}

// UnaryClientInterceptor returns a gRPC unary client interceptor that
// authenticates every call through a.
//
// The header written by a's RequestAuthenticator (by default
// "authorization: Bearer <token>") is appended to the outgoing metadata.
// Expired tokens are refreshed first. If authentication fails, the RPC is not
// started and the Authenticator's error is returned, wrapped. The RPC context
// bounds the wait for the Authenticator.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithUnaryInterceptor(grpcclient.UnaryClientInterceptor(auth)),
//	)
func UnaryClientInterceptor(a *authsession.Authenticator) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		ctx, err := authenticatedContext(ctx, a)
		if err != nil {
			return err
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that
// authenticates every stream through a. It behaves like UnaryClientInterceptor;
// if authentication fails, the stream is not created.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithStreamInterceptor(grpcclient.StreamClientInterceptor(auth)),
//	)
func StreamClientInterceptor(a *authsession.Authenticator) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		ctx, err := authenticatedContext(ctx, a)
		if err != nil {
			return nil, err
		}
		return streamer(ctx, desc, cc, method, opts...)
	}
}

func authenticatedContext(ctx context.Context, a *authsession.Authenticator) (context.Context, error) {
	if a == nil {
		return nil, fmt.Errorf("grpcclient: Authenticator is nil")
	}

	md := Metadata{}
	if err := a.AuthenticateRequest(ctx, md); err != nil {
		return nil, fmt.Errorf("grpcclient: failed to authenticate call: %w", err)
	}

	kv := make([]string, 0, 2*len(md))
	for key, values := range md {
		for _, value := range values {
			kv = append(kv, key, value)
		}
	}
	return metadata.AppendToOutgoingContext(ctx, kv...), nil
}
