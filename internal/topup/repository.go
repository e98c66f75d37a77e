package topup

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists top-up requests. Create enforces that at most one
// non-rejected request exists per external reference; UpdateStatus is a
// conditional pending→terminal flip.
type Repository interface {
	Create(ctx context.Context, request Request) error
	Get(ctx context.Context, id string) (Request, error)
	ListByStatus(ctx context.Context, status string) ([]Request, error)
	ListByAccount(ctx context.Context, accountID string) ([]Request, error)
	SetEntry(ctx context.Context, id, entryID string) error
	UpdateStatus(ctx context.Context, id, from, to string) error
}

// PostgresRepository stores top-up requests in PostgreSQL. The active
// reference guard is a partial unique index over non-rejected rows.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const requestColumns = `id, account_id, amount, reference, status, entry_id, created_at`

// Create inserts a request; ErrDuplicateReference when an active request
// already carries the same reference.
func (r *PostgresRepository) Create(ctx context.Context, request Request) error {
	id, err := uuid.Parse(request.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO topup_requests (`+requestColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, request.AccountID, request.Amount, request.Reference,
		request.Status, request.EntryID, request.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateReference
	}
	return err
}

// Get fetches a request by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Request, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return Request{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM topup_requests WHERE id = $1`, requestID)
	return scanRequest(row)
}

// ListByStatus fetches all requests in the given status, oldest first.
func (r *PostgresRepository) ListByStatus(ctx context.Context, status string) ([]Request, error) {
	return r.list(ctx, `WHERE status = $1 ORDER BY created_at`, status)
}

// ListByAccount fetches the account's requests, newest first.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]Request, error) {
	return r.list(ctx, `WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
}

func (r *PostgresRepository) list(ctx context.Context, where string, arg any) ([]Request, error) {
	rows, err := r.db.Query(ctx, `SELECT `+requestColumns+` FROM topup_requests `+where, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, request)
	}
	return out, rows.Err()
}

// SetEntry pairs the request with its pending ledger entry.
func (r *PostgresRepository) SetEntry(ctx context.Context, id, entryID string) error {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	_, err = r.db.Exec(ctx, `UPDATE topup_requests SET entry_id = $1 WHERE id = $2`, entryID, requestID)
	return err
}

// UpdateStatus applies a conditional status flip; ErrAlreadyProcessed when the
// request is no longer in the expected status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE topup_requests SET status = $1 WHERE id = $2 AND status = $3`,
		to, requestID, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrAlreadyProcessed
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (Request, error) {
	var request Request
	var id uuid.UUID
	var createdAt time.Time
	err := row.Scan(&id, &request.AccountID, &request.Amount, &request.Reference,
		&request.Status, &request.EntryID, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	if err != nil {
		return Request{}, err
	}
	request.ID = id.String()
	request.CreatedAt = createdAt.UTC()
	return request, nil
}
