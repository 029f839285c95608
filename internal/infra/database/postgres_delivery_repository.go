// internal/infra/database/postgres_delivery_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"birthday_notification_service/internal/domain/delivery"

	"github.com/google/uuid"
)

// Custom errors specific to the delivery ledger
var ErrRecordNotFound = fmt.Errorf("delivery record not found")
var ErrIllegalTransition = fmt.Errorf("illegal delivery status transition")

type PostgresDeliveryRepository struct {
	db *sql.DB
}

func NewPostgresDeliveryRepository(db *sql.DB) *PostgresDeliveryRepository {
	return &PostgresDeliveryRepository{db: db}
}

const recordColumns = `d.id, d.recipient_id, d.target_year, d.status, d.scheduled_for, d.sent_at,
                 d.attempt_count, d.last_error, d.created_at, d.updated_at,
                 COALESCE(r.email, ''), COALESCE(r.display_name, '')`

// --- Write Methods ---

// CreateIfAbsent relies on the UNIQUE (recipient_id, target_year) constraint:
// the insert of a concurrent loser simply affects no row, which comes back as
// sql.ErrNoRows from RETURNING and is mapped to (nil, nil).
func (r *PostgresDeliveryRepository) CreateIfAbsent(ctx context.Context, rec *delivery.Record) (*delivery.Record, error) {
	query := `INSERT INTO delivery_records (id, recipient_id, target_year, status, scheduled_for)
               VALUES ($1, $2, $3, $4, $5)
               ON CONFLICT (recipient_id, target_year) DO NOTHING
               RETURNING id, status, attempt_count, created_at, updated_at`
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := *rec
	err := r.db.QueryRowContext(ctx, query, id, rec.RecipientID, rec.TargetYear, delivery.StatusPending, rec.ScheduledFor).Scan(
		&created.ID, &created.Status, &created.AttemptCount, &created.CreatedAt, &created.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // A record for (recipient_id, target_year) already exists
		}
		return nil, fmt.Errorf("error creating delivery record: %w", err)
	}
	return &created, nil
}

func (r *PostgresDeliveryRepository) MarkQueued(ctx context.Context, id string) error {
	query := `UPDATE delivery_records
               SET status = $1, updated_at = NOW()
               WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, delivery.StatusQueued, id, delivery.StatusPending)
	if err != nil {
		return fmt.Errorf("error marking delivery record queued: %w", err)
	}
	return r.checkTransition(ctx, res, id, delivery.StatusQueued)
}

func (r *PostgresDeliveryRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	query := `UPDATE delivery_records
               SET status = $1, sent_at = $2, updated_at = NOW()
               WHERE id = $3 AND status != $1`
	res, err := r.db.ExecContext(ctx, query, delivery.StatusSent, sentAt, id)
	if err != nil {
		return fmt.Errorf("error marking delivery record sent: %w", err)
	}
	return r.checkTransition(ctx, res, id, delivery.StatusSent)
}

// MarkFailed increments the attempt counter in the same statement that flips
// the status, so two racing failure writes can never record the same count.
func (r *PostgresDeliveryRepository) MarkFailed(ctx context.Context, id string, lastError string) (int, error) {
	query := `UPDATE delivery_records
               SET status = $1, last_error = $2, attempt_count = attempt_count + 1, updated_at = NOW()
               WHERE id = $3 AND status != $4
               RETURNING attempt_count`
	var attempts int
	err := r.db.QueryRowContext(ctx, query, delivery.StatusFailed, lastError, id, delivery.StatusSent).Scan(&attempts)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, r.transitionError(ctx, id, delivery.StatusFailed)
		}
		return 0, fmt.Errorf("error marking delivery record failed: %w", err)
	}
	return attempts, nil
}

func (r *PostgresDeliveryRepository) MarkPending(ctx context.Context, id string) error {
	query := `UPDATE delivery_records
               SET status = $1, updated_at = NOW()
               WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, delivery.StatusPending, id, delivery.StatusFailed)
	if err != nil {
		return fmt.Errorf("error marking delivery record pending: %w", err)
	}
	return r.checkTransition(ctx, res, id, delivery.StatusPending)
}

// checkTransition maps a zero-row UPDATE to the reason it matched nothing:
// either the record does not exist or its current status refuses the change.
func (r *PostgresDeliveryRepository) checkTransition(ctx context.Context, res sql.Result, id string, to delivery.Status) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}
	return r.transitionError(ctx, id, to)
}

func (r *PostgresDeliveryRepository) transitionError(ctx context.Context, id string, to delivery.Status) error {
	var current delivery.Status
	err := r.db.QueryRowContext(ctx, `SELECT status FROM delivery_records WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrRecordNotFound
		}
		return fmt.Errorf("error looking up delivery record status: %w", err)
	}
	// The status read after a zero-row UPDATE can itself be stale: if it
	// still allows the change, a concurrent writer got between the two
	// statements and the failure is transient, not illegal.
	if delivery.CanTransition(current, to) {
		return fmt.Errorf("delivery record %s changed concurrently while moving to %s", id, to)
	}
	return fmt.Errorf("%w: cannot move from %s to %s (id=%s)", ErrIllegalTransition, current, to, id)
}

// --- Read Methods ---

func (r *PostgresDeliveryRepository) FindByID(ctx context.Context, id string) (*delivery.Record, error) {
	query := `SELECT ` + recordColumns + `
               FROM delivery_records d
               LEFT JOIN recipients r ON r.id = d.recipient_id
               WHERE d.id = $1`
	rec := delivery.Record{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.RecipientID, &rec.TargetYear, &rec.Status, &rec.ScheduledFor, &rec.SentAt,
		&rec.AttemptCount, &rec.LastError, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.RecipientEmail, &rec.RecipientName,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("error getting delivery record by ID: %w", err)
	}
	return &rec, nil
}

func (r *PostgresDeliveryRepository) ListPendingDue(ctx context.Context, now time.Time) ([]*delivery.Record, error) {
	query := `SELECT ` + recordColumns + `
               FROM delivery_records d
               LEFT JOIN recipients r ON r.id = d.recipient_id
               WHERE d.status = $1 AND d.scheduled_for <= $2
               ORDER BY d.scheduled_for ASC`
	rows, err := r.db.QueryContext(ctx, query, delivery.StatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("error querying pending due delivery records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (r *PostgresDeliveryRepository) ListRetryableFailed(ctx context.Context, maxAttempts int) ([]*delivery.Record, error) {
	query := `SELECT ` + recordColumns + `
               FROM delivery_records d
               LEFT JOIN recipients r ON r.id = d.recipient_id
               WHERE d.status = $1 AND d.attempt_count < $2
               ORDER BY d.updated_at ASC` // Oldest failures first
	rows, err := r.db.QueryContext(ctx, query, delivery.StatusFailed, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("error querying retryable failed delivery records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Helper to scan multiple rows
func scanRecords(rows *sql.Rows) ([]*delivery.Record, error) {
	records := make([]*delivery.Record, 0)
	for rows.Next() {
		rec := delivery.Record{}
		if err := rows.Scan(
			&rec.ID, &rec.RecipientID, &rec.TargetYear, &rec.Status, &rec.ScheduledFor, &rec.SentAt,
			&rec.AttemptCount, &rec.LastError, &rec.CreatedAt, &rec.UpdatedAt,
			&rec.RecipientEmail, &rec.RecipientName,
		); err != nil {
			return nil, fmt.Errorf("error scanning delivery record row: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery record rows: %w", err)
	}
	return records, nil
}
