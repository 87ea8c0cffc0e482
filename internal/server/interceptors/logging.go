package interceptors

import (
	"context"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// LoggingUnary returns a unary server interceptor that writes one access log line per RPC.
// skipMethods is the set of full method names to not log (e.g. health checks).
func LoggingUnary(log *zap.Logger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		code := status.Code(err)
		mi := ParseFullMethod(info.FullMethod)
		userID, _ := GetUserID(ctx)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("action", mi.Action),
			zap.String("resource", mi.Resource),
			zap.String("code", code.String()),
			zap.Duration("took", time.Since(start)),
			zap.String("client_ip", ClientIP(ctx)),
		}
		if userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		switch code {
		case codes.OK:
			log.Info("rpc", fields...)
		case codes.Internal, codes.Unknown, codes.Unavailable, codes.DeadlineExceeded:
			log.Error("rpc", append(fields, zap.Error(err))...)
		default:
			log.Warn("rpc", append(fields, zap.String("message", status.Convert(err).Message()))...)
		}
		return resp, err
	}
}

// RecoverUnary turns a handler panic into codes.Internal and logs it with a stack trace.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("rpc panic", zap.String("method", info.FullMethod), zap.Any("panic", r), zap.Stack("stack"))
				resp, err = nil, status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// ClientIP returns the client IP from gRPC metadata (x-forwarded-for, x-real-ip) or peer, or "unknown".
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				if i := strings.Index(s, ","); i > 0 {
					s = strings.TrimSpace(s[:i])
				}
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
