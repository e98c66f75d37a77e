package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists appointments. UpdateStatus is a conditional update from
// the confirmed status so that concurrent finalizations cannot both apply.
type Repository interface {
	Create(ctx context.Context, appointment Appointment) error
	Get(ctx context.Context, id string) (Appointment, error)
	ListByAccount(ctx context.Context, accountID string) ([]Appointment, error)
	UpdateStatus(ctx context.Context, id, from, to string) error
	SetMeetLink(ctx context.Context, id, link string) error
}

// PostgresRepository stores appointments in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const appointmentColumns = `id, account_id, availability_id, date, slot_time, therapy_type,
    session_type, notes, paid, price, status, meet_link, created_at`

// Create inserts an appointment record.
func (r *PostgresRepository) Create(ctx context.Context, a Appointment) error {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return err
	}
	availabilityID, err := uuid.Parse(a.AvailabilityID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO appointments (`+appointmentColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		id, a.AccountID, availabilityID, a.Date, a.Time, a.TherapyType,
		a.SessionType, a.Notes, a.Paid, a.Price, a.Status, a.MeetLink, a.CreatedAt.UTC())
	return err
}

// Get fetches an appointment by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Appointment, error) {
	appointmentID, err := uuid.Parse(id)
	if err != nil {
		return Appointment{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, appointmentID)
	return scanAppointment(row)
}

// ListByAccount fetches the account's appointments, newest first.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments
        WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateStatus applies a conditional status change; ErrAlreadyFinalized when
// the appointment is no longer in the expected status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	appointmentID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE appointments SET status = $1 WHERE id = $2 AND status = $3`,
		to, appointmentID, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrAlreadyFinalized
	}
	return nil
}

// SetMeetLink stores the video-call link for an appointment.
func (r *PostgresRepository) SetMeetLink(ctx context.Context, id, link string) error {
	appointmentID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE appointments SET meet_link = $1 WHERE id = $2`, link, appointmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (Appointment, error) {
	var a Appointment
	var id, availabilityID uuid.UUID
	var createdAt time.Time
	err := row.Scan(&id, &a.AccountID, &availabilityID, &a.Date, &a.Time, &a.TherapyType,
		&a.SessionType, &a.Notes, &a.Paid, &a.Price, &a.Status, &a.MeetLink, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, ErrNotFound
	}
	if err != nil {
		return Appointment{}, err
	}
	a.ID = id.String()
	a.AvailabilityID = availabilityID.String()
	a.CreatedAt = createdAt.UTC()
	return a, nil
}
