// server is the credential control plane gRPC server. It wires config,
// Postgres, telemetry, and the wallet challenge broker with its background
// sweeper. Auth key administration runs through cmd/keyctl against the same
// database.
package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credential-control-plane/backend/internal/audit"
	auditrepo "credential-control-plane/backend/internal/audit/repository"
	"credential-control-plane/backend/internal/challenge"
	"credential-control-plane/backend/internal/config"
	"credential-control-plane/backend/internal/db"
	"credential-control-plane/backend/internal/security"
	"credential-control-plane/backend/internal/server"
	telemetryotel "credential-control-plane/backend/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "credential-control-plane", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("telemetry: shutdown: %v", err)
		}
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	auditor := audit.Tee(
		audit.NewLogger(auditrepo.NewPostgresRepository(conn)),
		telemetryotel.NewAuditEmitter(providers.LoggerProvider),
	)

	broker := challenge.NewBroker(cfg.ChallengeTTLDuration(), security.RecoverSigner)
	sweeper := challenge.NewSweeper(broker, cfg.SweepIntervalDuration())

	srv := server.New(server.Deps{Auditor: auditor, DB: conn})

	go sweeper.Run(ctx)
	go srv.WatchHealth(ctx, 15*time.Second)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := srv.GRPC.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down gRPC server...")
	srv.GRPC.GracefulStop()
	log.Println("gRPC server stopped")
}
