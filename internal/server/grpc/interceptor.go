package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/webshelf/internal/server/auth"
	"github.com/dmitrijs2005/webshelf/internal/server/models"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// authorizationKey is the metadata key carrying "Bearer <token>".
const authorizationKey = "authorization"

func (s *GRPCServer) unaryAuthInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ctx, err := s.authenticate(ctx, info.FullMethod)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

func (s *GRPCServer) streamAuthInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx, err := s.authenticate(ss.Context(), info.FullMethod)
	if err != nil {
		return err
	}
	return handler(srv, &identityStream{ServerStream: ss, ctx: ctx})
}

// authenticate applies the gate to one call. Rejections carry no detail
// beyond the status code.
func (s *GRPCServer) authenticate(ctx context.Context, method string) (context.Context, error) {
	if s.gate.IsPublic(method) {
		return ctx, nil
	}

	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(authorizationKey); len(values) > 0 {
			header = values[0]
		}
	}

	ident, err := s.gate.Authenticate(header)
	if err != nil {
		reason := auth.RejectReason(err)
		token, _ := auth.BearerToken(header)
		s.metrics.GateRejection("grpc", reason)
		s.logger.Warn(ctx, "authentication failed", "auth_event", auth.SecurityEvent{
			Transport: "grpc",
			RequestID: uuid.NewString(),
			Target:    method,
			Reason:    reason,
			Token:     token,
		})
		return nil, status.Error(codes.Unauthenticated, "invalid or missing credentials")
	}

	if strings.HasPrefix(method, channelzPrefix+"/") && ident.Role != models.RoleAdmin {
		return nil, status.Error(codes.PermissionDenied, "insufficient permissions")
	}

	return auth.WithIdentity(ctx, ident), nil
}

// identityStream overrides Context so stream handlers see the identity.
type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context { return s.ctx }
