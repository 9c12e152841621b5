// seed inserts a development admin account for local testing.
// Idempotent: skips the insert if admin@example.com already exists.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"ident-plane/internal/account/domain"
	"ident-plane/internal/account/repository"
	"ident-plane/internal/config"
	"ident-plane/internal/db"
	"ident-plane/internal/security"
)

const (
	adminEmail    = "admin@example.com"
	adminUsername = "admin"
	adminPassword = "Admin1234"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if cfg.Env == "production" {
		log.Fatal("refusing to seed a production database")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	accounts := repository.NewPostgresStore(conn)
	existing, err := accounts.GetByEmail(ctx, adminEmail)
	if err != nil {
		log.Fatalf("lookup: %v", err)
	}
	if existing != nil {
		log.Printf("seed: %s already exists, nothing to do", adminEmail)
		return
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(adminPassword))
	if err != nil {
		log.Fatalf("hash: %v", err)
	}

	now := time.Now().UTC()
	admin := &domain.User{
		ID:           uuid.New().String(),
		Username:     adminUsername,
		Email:        adminEmail,
		Name:         "Development Admin",
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Verified:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := accounts.Create(ctx, admin); err != nil {
		log.Fatalf("insert: %v", err)
	}
	log.Printf("seed: created %s (username %s)", adminEmail, adminUsername)
}
