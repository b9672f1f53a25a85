// internal/engine/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

// PostgresStore keeps the full record as a JSONB document plus denormalized
// columns for the indexed lookups (provider id, schedule, retry cursor).
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: log}
}

func (s *PostgresStore) Create(ctx context.Context, record *models.NotificationRecord) error {
	doc, err := json.Marshal(record)
	if err != nil {
		return errors.NewDatabaseInsertError(err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notification_records
		 (id, user_id, channel, category, status, provider_id,
		  scheduled_for, schedule_sent, next_attempt, attempts, max_attempts,
		  doc, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		record.ID, record.UserID, string(record.Channel), string(record.Category),
		string(record.Status), nullString(record.Delivery.ProviderID),
		record.Scheduling.ScheduledFor, record.Scheduling.Sent,
		record.Delivery.NextAttempt, record.Delivery.Attempts, record.Delivery.MaxAttempts,
		doc, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return errors.NewDatabaseInsertError(err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.NotificationRecord, error) {
	return s.queryOne(ctx, `SELECT doc FROM notification_records WHERE id = $1`, id)
}

func (s *PostgresStore) FindByProviderID(ctx context.Context, providerID string) (*models.NotificationRecord, error) {
	if providerID == "" {
		return nil, nil
	}
	return s.queryOne(ctx, `SELECT doc FROM notification_records WHERE provider_id = $1`, providerID)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.NotificationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM notification_records WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) Update(ctx context.Context, record *models.NotificationRecord) error {
	doc, err := json.Marshal(record)
	if err != nil {
		return errors.NewDatabaseInsertError(err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE notification_records SET
		   status = $2, provider_id = $3, scheduled_for = $4, schedule_sent = $5,
		   next_attempt = $6, attempts = $7, doc = $8, updated_at = $9,
		   claimed_until = NULL
		 WHERE id = $1`,
		record.ID, string(record.Status), nullString(record.Delivery.ProviderID),
		record.Scheduling.ScheduledFor, record.Scheduling.Sent,
		record.Delivery.NextAttempt, record.Delivery.Attempts,
		doc, record.UpdatedAt)
	if err != nil {
		return errors.NewDatabaseInsertError(err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.NewDatabaseInsertError(fmt.Errorf("record %s does not exist", record.ID))
	}
	return nil
}

// ClaimDue leases due scheduled records with a conditional update. The
// FOR UPDATE SKIP LOCKED subselect plus the claimed_until check means each
// record is handed to exactly one concurrent sweep worker.
func (s *PostgresStore) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.NotificationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE notification_records SET claimed_until = $3
		 WHERE id IN (
		   SELECT id FROM notification_records
		   WHERE status = 'pending'
		     AND schedule_sent = false
		     AND scheduled_for IS NOT NULL
		     AND scheduled_for <= $1
		     AND (claimed_until IS NULL OR claimed_until < $1)
		   ORDER BY scheduled_for
		   LIMIT $2
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING doc`,
		now, limit, now.Add(lease))
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ClaimRetries leases failed records whose backoff has elapsed, with the
// same claim discipline as ClaimDue.
func (s *PostgresStore) ClaimRetries(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.NotificationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE notification_records SET claimed_until = $3
		 WHERE id IN (
		   SELECT id FROM notification_records
		   WHERE status = 'failed'
		     AND next_attempt IS NOT NULL
		     AND next_attempt <= $1
		     AND attempts < max_attempts
		     AND (claimed_until IS NULL OR claimed_until < $1)
		   ORDER BY next_attempt
		   LIMIT $2
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING doc`,
		now, limit, now.Add(lease))
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, arg interface{}) (*models.NotificationRecord, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}
	return decodeRecord(doc)
}

func scanRecords(rows *sql.Rows) ([]*models.NotificationRecord, error) {
	var records []*models.NotificationRecord
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, errors.NewDatabaseQueryError(err)
		}
		record, err := decodeRecord(doc)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}
	return records, nil
}

func decodeRecord(doc []byte) (*models.NotificationRecord, error) {
	var record models.NotificationRecord
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, errors.NewDatabaseQueryError(fmt.Errorf("decode record: %w", err))
	}
	return &record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
