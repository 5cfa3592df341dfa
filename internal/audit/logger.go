// Package audit records credential lifecycle events. Recording is best-effort:
// a failed audit write is logged and never fails the operation that produced it.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"credential-control-plane/backend/internal/audit/domain"
	auditrepo "credential-control-plane/backend/internal/audit/repository"
)

// SentinelOrgID is the org_id used for audit events that have no org (e.g. a
// verification attempt that matched nothing).
const SentinelOrgID = "_system"

// Recorder writes a single audit event with explicit action/resource. The
// issuer, verifier, and challenge broker accept a nil Recorder, which disables
// auditing.
type Recorder interface {
	Record(ctx context.Context, orgID, actorID, action, resource, metadata string)
}

// Logger implements Recorder using the audit repository.
type Logger struct {
	repo auditrepo.Repository
}

// NewLogger returns a Recorder that persists to repo.
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo}
}

// Record writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) Record(ctx context.Context, orgID, actorID, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	if orgID == "" {
		orgID = SentinelOrgID
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		ActorID:   actorID,
		Action:    action,
		Resource:  resource,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}

// Tee returns a Recorder that fans out each event to every non-nil recorder,
// e.g. the Postgres logger plus a telemetry emitter.
func Tee(recorders ...Recorder) Recorder {
	active := make([]Recorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			active = append(active, r)
		}
	}
	return tee(active)
}

type tee []Recorder

func (t tee) Record(ctx context.Context, orgID, actorID, action, resource, metadata string) {
	for _, r := range t {
		r.Record(ctx, orgID, actorID, action, resource, metadata)
	}
}
