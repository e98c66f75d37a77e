package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists daily availabilities and their slots. Reserve is the
// only conditional mutation: it must flip booked false→true atomically so
// that exactly one of N concurrent reservations for a slot succeeds.
type Repository interface {
	Create(ctx context.Context, availability Availability) error
	Get(ctx context.Context, id string) (Availability, error)
	GetByDate(ctx context.Context, date string) (Availability, error)
	Reserve(ctx context.Context, availabilityID, slotTime string) error
	Release(ctx context.Context, availabilityID, slotTime string) error
	Delete(ctx context.Context, id string) error
	PurgeBefore(ctx context.Context, date string) (int64, error)
}

// PostgresRepository stores availabilities in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an availability and its slots.
func (r *PostgresRepository) Create(ctx context.Context, availability Availability) error {
	id, err := uuid.Parse(availability.ID)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `INSERT INTO availabilities (id, date, active, created_at)
        VALUES ($1, $2, $3, $4)`, id, availability.Date, availability.Active, availability.CreatedAt.UTC()); err != nil {
		return err
	}

	for _, slot := range availability.Slots {
		if _, err := tx.Exec(ctx, `INSERT INTO slots (id, availability_id, slot_time, booked)
            VALUES ($1, $2, $3, $4)`, uuid.New(), id, slot.Time, slot.Booked); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Get fetches an availability with its slots by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Availability, error) {
	availabilityID, err := uuid.Parse(id)
	if err != nil {
		return Availability{}, ErrNotFound
	}
	return r.fetch(ctx, `WHERE a.id = $1`, availabilityID)
}

// GetByDate fetches the availability published for a date.
func (r *PostgresRepository) GetByDate(ctx context.Context, date string) (Availability, error) {
	return r.fetch(ctx, `WHERE a.date = $1`, date)
}

func (r *PostgresRepository) fetch(ctx context.Context, where string, arg any) (Availability, error) {
	row := r.db.QueryRow(ctx, `SELECT a.id, a.date, a.active, a.created_at FROM availabilities a `+where, arg)
	var a Availability
	var id uuid.UUID
	var createdAt time.Time
	if err := row.Scan(&id, &a.Date, &a.Active, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Availability{}, ErrNotFound
		}
		return Availability{}, err
	}
	a.ID = id.String()
	a.CreatedAt = createdAt.UTC()

	rows, err := r.db.Query(ctx, `SELECT slot_time, booked FROM slots
        WHERE availability_id = $1 ORDER BY slot_time`, id)
	if err != nil {
		return Availability{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.Time, &s.Booked); err != nil {
			return Availability{}, err
		}
		a.Slots = append(a.Slots, s)
	}
	return a, rows.Err()
}

// Reserve conditionally flips a free slot to booked in a single statement.
func (r *PostgresRepository) Reserve(ctx context.Context, availabilityID, slotTime string) error {
	id, err := uuid.Parse(availabilityID)
	if err != nil {
		return ErrSlotUnavailable
	}
	tag, err := r.db.Exec(ctx, `UPDATE slots s SET booked = TRUE
        FROM availabilities a
        WHERE s.availability_id = a.id
          AND a.id = $1 AND a.active
          AND s.slot_time = $2 AND NOT s.booked`, id, slotTime)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

// Release unconditionally frees a slot. Releasing a free slot is a no-op.
func (r *PostgresRepository) Release(ctx context.Context, availabilityID, slotTime string) error {
	id, err := uuid.Parse(availabilityID)
	if err != nil {
		return nil
	}
	_, err = r.db.Exec(ctx, `UPDATE slots SET booked = FALSE
        WHERE availability_id = $1 AND slot_time = $2`, id, slotTime)
	return err
}

// Delete removes an availability and its slots.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	availabilityID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM availabilities WHERE id = $1`, availabilityID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeBefore deletes all availabilities dated strictly before the given date.
func (r *PostgresRepository) PurgeBefore(ctx context.Context, date string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM availabilities WHERE date < $1`, date)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
