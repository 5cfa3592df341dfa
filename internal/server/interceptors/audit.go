// Package interceptors provides unary gRPC server interceptors for request
// logging and audit recording.
package interceptors

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"credential-control-plane/backend/internal/audit"
)

// grpcRequestMetadata is the JSON shape stored in the audit entry metadata for
// grpc_request events.
type grpcRequestMetadata struct {
	FullMethod string `json:"full_method"`
	StatusCode string `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// AuditUnary returns a unary server interceptor that records an audit event
// after each RPC. skipMethods is the set of full method names to not audit
// (e.g. the health check). Recording is best-effort and never fails the RPC.
// If recorder is nil, the interceptor no-ops.
func AuditUnary(recorder audit.Recorder, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if recorder == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		meta := grpcRequestMetadata{
			FullMethod: info.FullMethod,
			StatusCode: status.Code(err).String(),
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   ClientIP(ctx),
		}
		metaJSON, _ := json.Marshal(meta)
		orgID, _ := GetOrgID(ctx)
		actorID, _ := GetActorID(ctx)
		action, resource := parseFullMethod(info.FullMethod)
		recorder.Record(ctx, orgID, actorID, action, resource, string(metaJSON))
		return resp, err
	}
}

// LoggingUnary returns a unary server interceptor that logs each RPC with its
// status code and duration.
func LoggingUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Printf("grpc: %s code=%s duration=%s", info.FullMethod, status.Code(err), time.Since(start).Round(time.Millisecond))
		return resp, err
	}
}

// parseFullMethod maps a gRPC full method name like
// "/grpc.health.v1.Health/Check" to a snake_case action ("check") and the
// short service name as resource ("health").
func parseFullMethod(fullMethod string) (action, resource string) {
	trimmed := strings.TrimPrefix(fullMethod, "/")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return strings.ToLower(trimmed), ""
	}
	svc := parts[0]
	if i := strings.LastIndex(svc, "."); i >= 0 {
		svc = svc[i+1:]
	}
	return toSnake(parts[1]), strings.ToLower(svc)
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
