// Package store binds the auth service's transactional boundary to Postgres.
package store

import (
	"context"
	"database/sql"

	accountrepo "ident-plane/internal/account/repository"
	"ident-plane/internal/auth/service"
	"ident-plane/internal/dbx"
	otprepo "ident-plane/internal/otp/repository"
)

// PostgresTxRunner runs service transactions over a shared *sql.DB.
type PostgresTxRunner struct {
	db *sql.DB
}

func NewPostgresTxRunner(db *sql.DB) *PostgresTxRunner {
	return &PostgresTxRunner{db: db}
}

// InTx opens a transaction and hands fn stores bound to it. Everything fn
// writes commits together or not at all.
func (r *PostgresTxRunner) InTx(ctx context.Context, fn func(s service.TxStores) error) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(service.TxStores{
			Accounts: accountrepo.NewPostgresStore(tx),
			Codes:    otprepo.NewPostgresStore(tx),
		})
	})
}
