package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pgfinder/internal/common"
	"github.com/dmitrijs2005/pgfinder/internal/server/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ReasonRefreshToken is the introspection reason for a valid refresh token.
const ReasonRefreshToken = "REFRESH_TOKEN"

// Introspect verifies an access token. The token comes from the request,
// or from the access_token metadata when the request is empty. Tokens that
// fail verification yield active=false and the failure kind. Refresh tokens
// are never active here: their validity depends on the stored session,
// which only the refresh endpoint checks.
func (s *GRPCServer) Introspect(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	token := req.GetValue()
	if token == "" {
		token = tokenFromMetadata(ctx)
	}
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "missing token")
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Debug(ctx, "introspection rejected token", "reason", auth.FailureKind(err))
		return structpb.NewStruct(map[string]any{
			"active": false,
			"reason": auth.FailureKind(err),
		})
	}
	if claims.IsRefresh() {
		return structpb.NewStruct(map[string]any{
			"active": false,
			"reason": ReasonRefreshToken,
			"kind":   auth.KindRefresh,
		})
	}

	var expiresAt string
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.UTC().Format(time.RFC3339)
	}

	res, err := structpb.NewStruct(map[string]any{
		"active":    true,
		"email":     claims.Subject,
		"role":      string(claims.Role),
		"accountId": claims.AccountID,
		"kind":      "access",
		"expiresAt": expiresAt,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return res, nil
}

func tokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(common.AccessTokenHeaderName)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
