package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists ledger entries in PostgreSQL. The accounts.balance
// column is updated in the same transaction as every entry write, so it always
// matches the signed sum of completed entries.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger implementation.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureAccount guarantees an account exists for the provided code.
func (s *PostgresStore) EnsureAccount(ctx context.Context, code string) error {
	_, err := s.db.Exec(ctx, `INSERT INTO accounts (id, code, balance) VALUES ($1, $2, 0)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

// Balance returns the current balance for the specified account code.
func (s *PostgresStore) Balance(ctx context.Context, code string) (int64, error) {
	var balance int64
	err := s.db.QueryRow(ctx, `SELECT balance FROM accounts WHERE code = $1`, code).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return balance, err
}

// Entries lists the movement history for an account, newest first.
func (s *PostgresStore) Entries(ctx context.Context, code string) ([]Entry, error) {
	const query = `
        SELECT e.id, a.code, e.amount, e.direction, e.purpose, e.status,
               e.reference_id, e.resulting_balance, e.created_at
        FROM wallet_entries e
        INNER JOIN accounts a ON a.id = e.account_id
        WHERE a.code = $1
        ORDER BY e.created_at DESC`
	rows, err := s.db.Query(ctx, query, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var id uuid.UUID
		var createdAt time.Time
		if err := rows.Scan(&id, &e.AccountCode, &e.Amount, &e.Direction, &e.Purpose,
			&e.Status, &e.ReferenceID, &e.ResultingBalance, &createdAt); err != nil {
			return nil, err
		}
		e.ID = id.String()
		e.CreatedAt = createdAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Debit atomically checks funds, decrements the balance and appends a completed entry.
func (s *PostgresStore) Debit(ctx context.Context, code string, amount int64, purpose, referenceID string) (Entry, error) {
	if amount <= 0 {
		return Entry{}, fmt.Errorf("amount must be positive")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	accountID, balance, err := lockAccount(ctx, tx, code)
	if err != nil {
		return Entry{}, err
	}
	if balance < amount {
		return Entry{}, ErrInsufficientFunds
	}

	balance -= amount
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2`, balance, accountID); err != nil {
		return Entry{}, err
	}

	entry, err := insertEntry(ctx, tx, accountID, Entry{
		AccountCode:      code,
		Amount:           amount,
		Direction:        DirectionDebit,
		Purpose:          purpose,
		Status:           StatusCompleted,
		ReferenceID:      referenceID,
		ResultingBalance: balance,
	})
	if err != nil {
		return Entry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Credit appends an entry and applies the balance increment when status is completed.
func (s *PostgresStore) Credit(ctx context.Context, code string, amount int64, purpose, referenceID, status string) (Entry, error) {
	if amount <= 0 {
		return Entry{}, fmt.Errorf("amount must be positive")
	}
	if status != StatusPending && status != StatusCompleted {
		return Entry{}, fmt.Errorf("invalid credit status %q", status)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	accountID, balance, err := lockAccount(ctx, tx, code)
	if err != nil {
		return Entry{}, err
	}

	if existing, err := activeEntryByReference(ctx, tx, purpose, referenceID); err == nil {
		return existing, ErrDuplicateReference
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, err
	}

	if status == StatusCompleted {
		balance += amount
		if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2`, balance, accountID); err != nil {
			return Entry{}, err
		}
	}

	entry, err := insertEntry(ctx, tx, accountID, Entry{
		AccountCode:      code,
		Amount:           amount,
		Direction:        DirectionCredit,
		Purpose:          purpose,
		Status:           status,
		ReferenceID:      referenceID,
		ResultingBalance: balance,
	})
	if err != nil {
		return Entry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// ResolvePending flips a pending entry to completed or rejected exactly once.
func (s *PostgresStore) ResolvePending(ctx context.Context, entryID, status string) (Entry, error) {
	if status != StatusCompleted && status != StatusRejected {
		return Entry{}, fmt.Errorf("invalid resolution status %q", status)
	}

	id, err := uuid.Parse(entryID)
	if err != nil {
		return Entry{}, ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	const query = `
        SELECT e.account_id, a.code, e.amount, e.direction, e.purpose, e.status,
               e.reference_id, e.resulting_balance, e.created_at
        FROM wallet_entries e
        INNER JOIN accounts a ON a.id = e.account_id
        WHERE e.id = $1
        FOR UPDATE OF e`
	var entry Entry
	var accountID uuid.UUID
	var createdAt time.Time
	err = tx.QueryRow(ctx, query, id).Scan(&accountID, &entry.AccountCode, &entry.Amount,
		&entry.Direction, &entry.Purpose, &entry.Status, &entry.ReferenceID,
		&entry.ResultingBalance, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	entry.ID = entryID
	entry.CreatedAt = createdAt.UTC()

	if entry.Status != StatusPending {
		return entry, ErrAlreadyProcessed
	}

	entry.Status = status
	if status == StatusCompleted {
		var balance int64
		if err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance); err != nil {
			return Entry{}, err
		}
		balance += entry.Amount
		if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2`, balance, accountID); err != nil {
			return Entry{}, err
		}
		entry.ResultingBalance = balance
	}

	if _, err := tx.Exec(ctx, `UPDATE wallet_entries SET status = $1, resulting_balance = $2 WHERE id = $3`,
		entry.Status, entry.ResultingBalance, id); err != nil {
		return Entry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func lockAccount(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, int64, error) {
	var id uuid.UUID
	var balance int64
	err := tx.QueryRow(ctx, `SELECT id, balance FROM accounts WHERE code = $1 FOR UPDATE`, code).Scan(&id, &balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, 0, ErrNotFound
	}
	return id, balance, err
}

func activeEntryByReference(ctx context.Context, tx pgx.Tx, purpose, referenceID string) (Entry, error) {
	const query = `
        SELECT e.id, a.code, e.amount, e.direction, e.status, e.resulting_balance, e.created_at
        FROM wallet_entries e
        INNER JOIN accounts a ON a.id = e.account_id
        WHERE e.purpose = $1 AND e.reference_id = $2 AND e.status <> $3`
	var entry Entry
	var id uuid.UUID
	var createdAt time.Time
	err := tx.QueryRow(ctx, query, purpose, referenceID, StatusRejected).Scan(&id,
		&entry.AccountCode, &entry.Amount, &entry.Direction, &entry.Status,
		&entry.ResultingBalance, &createdAt)
	if err != nil {
		return Entry{}, err
	}
	entry.ID = id.String()
	entry.Purpose = purpose
	entry.ReferenceID = referenceID
	entry.CreatedAt = createdAt.UTC()
	return entry, nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, e Entry) (Entry, error) {
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	_, err := tx.Exec(ctx, `INSERT INTO wallet_entries
            (id, account_id, amount, direction, purpose, status, reference_id, resulting_balance, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, accountID, e.Amount, e.Direction, e.Purpose, e.Status, e.ReferenceID, e.ResultingBalance, e.CreatedAt)
	return e, err
}
