package grpcx

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/huddle/libs/httpx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDMetadataKey carries the request id in gRPC metadata, shared with the HTTP
// X-Request-Id so one id follows a call across both transports.
const RequestIDMetadataKey = "x-request-id"

// UnaryClientRequestIDInterceptor forwards the request id found in ctx.
func UnaryClientRequestIDInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if id := httpx.RequestIDFromContext(ctx); id != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, RequestIDMetadataKey, id)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// UnaryServerInterceptor adopts the caller's request id (or mints one), echoes it in the
// response header and writes one access log line per call. Successful calls log at
// debug so health probes stay quiet.
func UnaryServerInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		incoming := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
				incoming = vals[0]
			}
		}
		id := httpx.RequestIDOrNew(incoming)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDMetadataKey, id))
		ctx = httpx.ContextWithRequestID(ctx, id)

		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		level := slog.LevelDebug
		if code != codes.OK {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "grpc request",
			"request_id", id,
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
