package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"credential-control-plane/backend/internal/audit"
)

// recordEmitter is the subset of otellog.Logger the audit emitter needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewAuditEmitter returns an audit.Recorder that emits audit events as OTel
// log records via the given LoggerProvider. If provider is nil, returns a
// no-op recorder.
func NewAuditEmitter(provider *sdklog.LoggerProvider) audit.Recorder {
	if provider == nil {
		return noopRecorder{}
	}
	return &auditEmitter{logger: provider.Logger("ccp.audit")}
}

// NewAuditEmitterWithLogger returns an audit.Recorder over an explicit log
// emitter. Used by tests to capture records.
func NewAuditEmitterWithLogger(logger recordEmitter) audit.Recorder {
	return &auditEmitter{logger: logger}
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, string, string, string, string, string) {}

type auditEmitter struct {
	logger recordEmitter
}

// Record converts the audit event to an OTel log record and emits it.
// Best-effort; emission never fails the caller.
func (e *auditEmitter) Record(ctx context.Context, orgID, actorID, action, resource, metadata string) {
	rec := otellog.Record{}
	rec.SetTimestamp(time.Now().UTC())
	rec.SetBody(otellog.StringValue(action))
	if orgID != "" {
		rec.AddAttributes(otellog.String("org_id", orgID))
	}
	if actorID != "" {
		rec.AddAttributes(otellog.String("actor_id", actorID))
	}
	if resource != "" {
		rec.AddAttributes(otellog.String("resource", resource))
	}
	if metadata != "" {
		rec.AddAttributes(otellog.String("metadata", metadata))
	}
	e.logger.Emit(ctx, rec)
}
