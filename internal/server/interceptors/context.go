package interceptors

import (
	"context"
	"net"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

type contextKey struct{ name string }

var (
	actorIDKey = contextKey{"actor_id"}
	orgIDKey   = contextKey{"org_id"}
)

// WithIdentity returns a context with actor_id and org_id set. Handlers and
// the audit interceptor can read these via GetActorID and GetOrgID.
func WithIdentity(ctx context.Context, actorID, orgID string) context.Context {
	ctx = context.WithValue(ctx, actorIDKey, actorID)
	ctx = context.WithValue(ctx, orgIDKey, orgID)
	return ctx
}

// GetActorID returns the actor_id from context and true if set; otherwise "", false.
func GetActorID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(actorIDKey).(string)
	return v, ok
}

// GetOrgID returns the org_id from context and true if set; otherwise "", false.
func GetOrgID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(orgIDKey).(string)
	return v, ok
}

// ClientIP returns the client IP for the RPC: x-forwarded-for (first hop),
// then x-real-ip, then the peer address. Empty string if none is available.
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
	return ""
}
