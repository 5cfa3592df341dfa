// keyctl is an operator CLI for the onboarding auth key lifecycle: generate a
// batch, verify a presented secret, commit it to an employee, reset it, or
// revoke a key by ID. Plaintext secrets are printed once on generate and never
// stored or logged.
//
//	keyctl generate -org <org-id> -count 5 [-label <label>]
//	keyctl verify  -secret <secret>
//	keyctl commit  -secret <secret> -employee <employee-id>
//	keyctl reset   -secret <secret>
//	keyctl revoke  -id <key-id>
package main

import (
	"context"
	"flag"
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
	orgrepo "credential-control-plane/backend/internal/organization/repository"
	"credential-control-plane/backend/internal/security"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

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
	hasher := security.NewHasher(cfg.BcryptCost)
	issuer := authkeyservice.NewIssuer(keys, orgs, hasher, auditor)
	verifier := authkeyservice.NewVerifier(keys, orgs, hasher, auditor)

	switch os.Args[1] {
	case "generate":
		fs := flag.NewFlagSet("generate", flag.ExitOnError)
		orgID := fs.String("org", "", "organization ID")
		count := fs.Int("count", 1, "number of keys to generate")
		label := fs.String("label", "", "optional batch label")
		parseArgs(fs)
		secrets, err := issuer.Generate(ctx, *orgID, *count, cfg.AuthKeyTTLDuration(), *label)
		if err != nil {
			log.Fatalf("generate: %v", err)
		}
		fmt.Printf("Generated %d keys for %s (shown once, store them now):\n", len(secrets), *orgID)
		for _, s := range secrets {
			fmt.Println("  " + s)
		}

	case "verify":
		fs := flag.NewFlagSet("verify", flag.ExitOnError)
		secret := fs.String("secret", "", "presented auth key secret")
		parseArgs(fs)
		v, err := verifier.Verify(ctx, *secret)
		if err != nil {
			log.Fatalf("verify: %v", err)
		}
		fmt.Printf("key %s is valid for org %s (%s)\n", v.Key.ID, v.Org.ID, v.Org.Name)

	case "commit":
		fs := flag.NewFlagSet("commit", flag.ExitOnError)
		secret := fs.String("secret", "", "presented auth key secret")
		employee := fs.String("employee", "", "employee ID to bind the key to")
		parseArgs(fs)
		key, err := verifier.Commit(ctx, *secret, *employee)
		if err != nil {
			log.Fatalf("commit: %v", err)
		}
		fmt.Printf("key %s committed to employee %s\n", key.ID, key.AssignedEmployeeID)

	case "reset":
		fs := flag.NewFlagSet("reset", flag.ExitOnError)
		secret := fs.String("secret", "", "presented auth key secret")
		parseArgs(fs)
		key, err := verifier.Reset(ctx, *secret)
		if err != nil {
			log.Fatalf("reset: %v", err)
		}
		fmt.Printf("key %s reset to %s\n", key.ID, key.Status)

	case "revoke":
		fs := flag.NewFlagSet("revoke", flag.ExitOnError)
		id := fs.String("id", "", "auth key ID")
		parseArgs(fs)
		if err := verifier.Revoke(ctx, *id); err != nil {
			log.Fatalf("revoke: %v", err)
		}
		fmt.Printf("key %s revoked\n", *id)

	default:
		usage()
		os.Exit(2)
	}
}

func parseArgs(fs *flag.FlagSet) {
	// ExitOnError: Parse never returns a non-nil error.
	_ = fs.Parse(os.Args[2:])
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: keyctl <generate|verify|commit|reset|revoke> [flags]")
}
