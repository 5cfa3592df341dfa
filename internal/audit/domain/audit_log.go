package domain

import "time"

// AuditLog represents one credential lifecycle event (key generation, commit,
// reset, revocation, challenge issue/consume).
type AuditLog struct {
	ID        string
	OrgID     string
	ActorID   string
	Action    string
	Resource  string
	Metadata  string
	CreatedAt time.Time
}
