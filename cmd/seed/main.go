// seed inserts a development organization and a batch of onboarding auth keys
// for local testing. Idempotent: skips inserts if the dev org already exists.
// The plaintext secrets are printed once; only their hashes are stored.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"credential-control-plane/backend/internal/audit"
	auditrepo "credential-control-plane/backend/internal/audit/repository"
	authkeyrepo "credential-control-plane/backend/internal/authkey/repository"
	authkeyservice "credential-control-plane/backend/internal/authkey/service"
	"credential-control-plane/backend/internal/config"
	"credential-control-plane/backend/internal/db"
	orgdomain "credential-control-plane/backend/internal/organization/domain"
	orgrepo "credential-control-plane/backend/internal/organization/repository"
	"credential-control-plane/backend/internal/security"
)

const (
	devOrgID   = "dev-org-001"
	devOrgName = "Dev Organization"
	devBatch   = 5
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	orgs := orgrepo.NewPostgresRepository(conn)
	keys := authkeyrepo.NewPostgresRepository(conn)
	auditor := audit.NewLogger(auditrepo.NewPostgresRepository(conn))

	existing, err := orgs.GetOrganizationByID(ctx, devOrgID)
	if err != nil {
		log.Fatalf("seed: lookup dev org: %v", err)
	}
	if existing != nil {
		log.Printf("seed: org %s already exists, nothing to do", devOrgID)
		return
	}

	org := &orgdomain.Org{
		ID:                 devOrgID,
		Name:               devOrgName,
		KYCStatus:          orgdomain.KYCStatusApproved,
		SubscriptionStatus: orgdomain.SubscriptionStatusActive,
		EmployeeLimit:      25,
		CreatedAt:          time.Now().UTC(),
	}
	if err := orgs.CreateOrganization(ctx, org); err != nil {
		log.Fatalf("seed: create org: %v", err)
	}
	log.Printf("seed: created org %s (%s)", org.ID, org.Name)

	issuer := authkeyservice.NewIssuer(keys, orgs, security.NewHasher(cfg.BcryptCost), auditor)
	secrets, err := issuer.Generate(ctx, org.ID, devBatch, cfg.AuthKeyTTLDuration(), "seed batch")
	if err != nil {
		log.Fatalf("seed: generate auth keys: %v", err)
	}

	fmt.Printf("Generated %d onboarding keys for %s (shown once, store them now):\n", len(secrets), org.ID)
	for _, s := range secrets {
		fmt.Println("  " + s)
	}
}
