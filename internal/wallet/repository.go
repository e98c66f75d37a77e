package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no wallet exists for the requested owner.
var ErrNotFound = errors.New("wallet not found")

// Repository persists wallet metadata.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	GetByOwner(ctx context.Context, ownerID string) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record. Concurrent provisioning for the same owner
// is tolerated: the first insert wins and later ones are no-ops.
func (r *PostgresRepository) Create(ctx context.Context, wallet Wallet) error {
	walletID, err := uuid.Parse(wallet.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, account_code, currency, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (owner_id) DO NOTHING`,
		walletID, wallet.OwnerID, wallet.AccountCode, wallet.Currency, wallet.Status, wallet.CreatedAt.UTC())
	return err
}

// GetByOwner fetches wallet metadata by its owning account identifier.
func (r *PostgresRepository) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT id, owner_id, account_code, currency, status, created_at
        FROM wallets WHERE owner_id = $1`, ownerID)
	var w Wallet
	var createdAt time.Time
	var idVal uuid.UUID
	if err := row.Scan(&idVal, &w.OwnerID, &w.AccountCode, &w.Currency, &w.Status, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.ID = idVal.String()
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
