// Package interceptors holds gRPC stream interceptors shared by the
// delivery server. There is no identity service in this deployment, so
// authorization here is limited to session-id scoping: the interceptor
// pulls the session id a generated streaming RPC would carry in request
// metadata, validating only that it is present, and stashes it on the
// stream's context for the handler.
package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

// SessionIDContextKey is the key under which the scoped session id is
// stored in a stream handler's context.
const SessionIDContextKey contextKey = "session_id"

const sessionIDMetadataKey = "x-session-id"

// NewSessionScopeInterceptor rejects any stream that does not carry a
// session id in its metadata and injects that id into the stream's
// context before the handler runs.
func NewSessionScopeInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return status.Error(codes.InvalidArgument, "missing request metadata")
		}
		ids := md.Get(sessionIDMetadataKey)
		if len(ids) == 0 || ids[0] == "" {
			return status.Errorf(codes.InvalidArgument, "missing %s metadata", sessionIDMetadataKey)
		}

		newCtx := context.WithValue(ctx, SessionIDContextKey, ids[0])
		wrapped := &wrappedStream{ServerStream: ss, ctx: newCtx}
		return handler(srv, wrapped)
	}
}

// wrappedStream overrides the context of the original stream.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}

// SessionIDFromContext extracts the session id a stream interceptor
// stashed in context.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(SessionIDContextKey).(string)
	return id, ok
}
