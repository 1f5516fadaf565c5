// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package purchase

import (
	"context"
	"time"
)

// Attempt is one audit row per checkout attempt.
type Attempt struct {
	ID             string    `json:"id"`
	UserID         string    `json:"-"`
	CourseID       string    `json:"course_id"`
	GatewayOrderID string    `json:"gateway_order_id"`
	PaymentID      string    `json:"payment_id,omitempty"`
	State          string    `json:"state"`
	FailureKind    string    `json:"failure_kind,omitempty"`
	Message        string    `json:"message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AttemptRecorder persists checkout attempts for support and reconciliation.
//
// Recording is best-effort: the coordinator logs failures and carries on,
// since the marketplace remains the record of truth for payments.
type AttemptRecorder interface {
	// Record inserts the attempt or updates the row with the same ID.
	Record(ctx context.Context, attempt Attempt) error

	// ListByUser returns the most recent attempts of a user, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]Attempt, error)
}

// NopRecorder discards attempts. Used when no database is configured.
type NopRecorder struct{}

// Record implements [AttemptRecorder].
func (NopRecorder) Record(context.Context, Attempt) error { return nil }

// ListByUser implements [AttemptRecorder].
func (NopRecorder) ListByUser(context.Context, string, int) ([]Attempt, error) { return nil, nil }
