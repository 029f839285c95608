package database

import (
	"context"
	"database/sql"
	"fmt"

	"birthday_notification_service/internal/domain/recipient"

	"github.com/lib/pq" // For pq.Array and driver registration
)

type PostgresRecipientRepository struct {
	db *sql.DB
}

func NewPostgresRecipientRepository(db *sql.DB) *PostgresRecipientRepository {
	return &PostgresRecipientRepository{db: db}
}

func (r *PostgresRecipientRepository) FindByBirthday(ctx context.Context, month, day int, timezones []string) ([]*recipient.Recipient, error) {
	if len(timezones) == 0 {
		return []*recipient.Recipient{}, nil
	}

	query := `SELECT id, display_name, email, timezone, birth_month, birth_day, created_at, updated_at
               FROM recipients
               WHERE birth_month = $1
                 AND birth_day = $2
                 AND timezone = ANY($3::varchar[])
               ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, month, day, pq.Array(timezones))
	if err != nil {
		return nil, fmt.Errorf("error querying recipients by birthday: %w", err)
	}
	defer rows.Close()

	recipients := make([]*recipient.Recipient, 0)
	for rows.Next() {
		rec := &recipient.Recipient{}
		if err := rows.Scan(&rec.ID, &rec.DisplayName, &rec.Email, &rec.Timezone, &rec.BirthMonth, &rec.BirthDay, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning recipient: %w", err)
		}
		recipients = append(recipients, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipients: %w", err)
	}
	return recipients, nil
}

func (r *PostgresRecipientRepository) DistinctTimezones(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT timezone FROM recipients ORDER BY timezone`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying distinct timezones: %w", err)
	}
	defer rows.Close()

	zones := make([]string, 0)
	for rows.Next() {
		var zone string
		if err := rows.Scan(&zone); err != nil {
			return nil, fmt.Errorf("error scanning timezone: %w", err)
		}
		zones = append(zones, zone)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timezones: %w", err)
	}
	return zones, nil
}
