// Command devtoken signs a customer identity token with the configured
// JWT_SECRET so the customer API can be exercised without the identity
// provider. It refuses to run when APP_ENV is production.
//
//	go run ./cmd/devtoken -user u_123 -email ada@example.com -name Ada
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/emberloaf/loyalty/internal/auth"
	"github.com/emberloaf/loyalty/internal/config"
	"github.com/emberloaf/loyalty/internal/models"
)

func main() {
	userID := flag.String("user", "", "identity-provider user id (token subject)")
	email := flag.String("email", "", "email claim")
	name := flag.String("name", "", "user_metadata.full_name claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: devtoken -user <id> [-email e] [-name n] [-ttl 1h]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Env == "production" {
		slog.Error("devtoken is disabled in production")
		os.Exit(1)
	}

	token, err := auth.NewService(cfg.JWTSecret, cfg.JWTAudience).
		IssueToken(models.Identity{UserID: *userID, Email: *email, DisplayName: *name}, *ttl)
	if err != nil {
		slog.Error("Failed to sign token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
