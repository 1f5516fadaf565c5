// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package purchase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/coursehub/internal/platform/database/schema"
	"github.com/taibuivan/coursehub/internal/platform/dberr"
)

// maxHistory caps ListByUser.
const maxHistory = 100

// PostgresLedger implements [AttemptRecorder] on the purchase_attempts table.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger creates a PostgreSQL-backed [AttemptRecorder].
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// Record upserts the attempt keyed by its ULID.
//
// # Parameters
//   - ctx: Context for the database operation.
//   - attempt: The attempt; CreatedAt is kept from the first insert.
func (repository *PostgresLedger) Record(ctx context.Context, attempt Attempt) error {
	table := schema.PurchaseAttempt
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (%[3]s) DO UPDATE SET
			%[4]s = COALESCE(NULLIF(EXCLUDED.%[4]s, ''), %[1]s.%[4]s),
			%[5]s = EXCLUDED.%[5]s,
			%[6]s = EXCLUDED.%[6]s,
			%[7]s = EXCLUDED.%[7]s,
			%[8]s = EXCLUDED.%[8]s`,
		table.Table, table.ColumnList(), table.ID,
		table.PaymentID, table.State, table.FailureKind, table.Message, table.UpdatedAt,
	)

	now := time.Now().UTC()
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = now
	}
	attempt.UpdatedAt = now

	_, err := repository.pool.Exec(ctx, query,
		attempt.ID,
		attempt.UserID,
		attempt.CourseID,
		attempt.GatewayOrderID,
		attempt.PaymentID,
		attempt.State,
		attempt.FailureKind,
		attempt.Message,
		attempt.CreatedAt,
		attempt.UpdatedAt,
	)

	return dberr.Wrap(err, "Purchase attempt")
}

// ListByUser returns the latest attempts of userID, newest first.
func (repository *PostgresLedger) ListByUser(ctx context.Context, userID string, limit int) ([]Attempt, error) {
	table := schema.PurchaseAttempt
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1
		ORDER BY %s DESC
		LIMIT $2`,
		table.ColumnList(), table.Table, table.UserID, table.ID,
	)

	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}

	rows, err := repository.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, dberr.Wrap(err, "Purchase history")
	}
	defer rows.Close()

	attempts := make([]Attempt, 0)
	for rows.Next() {
		var attempt Attempt
		if err := rows.Scan(
			&attempt.ID,
			&attempt.UserID,
			&attempt.CourseID,
			&attempt.GatewayOrderID,
			&attempt.PaymentID,
			&attempt.State,
			&attempt.FailureKind,
			&attempt.Message,
			&attempt.CreatedAt,
			&attempt.UpdatedAt,
		); err != nil {
			return nil, dberr.Wrap(err, "Purchase history")
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "Purchase history")
	}

	return attempts, nil
}
