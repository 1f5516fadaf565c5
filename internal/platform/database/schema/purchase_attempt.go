// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the tables and columns of the purchase ledger so SQL
// is assembled from one definition instead of repeated string literals.
package schema

import "strings"

// PurchaseAttemptTable represents the 'purchase_attempts' table
type PurchaseAttemptTable struct {
	Table          string
	ID             string
	UserID         string
	CourseID       string
	GatewayOrderID string
	PaymentID      string
	State          string
	FailureKind    string
	Message        string
	CreatedAt      string
	UpdatedAt      string
}

// PurchaseAttempt is the schema definition for purchase_attempts
var PurchaseAttempt = PurchaseAttemptTable{
	Table:          "purchase_attempts",
	ID:             "id",
	UserID:         "user_id",
	CourseID:       "course_id",
	GatewayOrderID: "gateway_order_id",
	PaymentID:      "payment_id",
	State:          "state",
	FailureKind:    "failure_kind",
	Message:        "message",
	CreatedAt:      "created_at",
	UpdatedAt:      "updated_at",
}

// Columns returns all standard column names, in scan order.
func (t PurchaseAttemptTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.CourseID, t.GatewayOrderID, t.PaymentID, t.State, t.FailureKind, t.Message, t.CreatedAt, t.UpdatedAt,
	}
}

// ColumnList returns Columns joined for a SELECT or INSERT list.
func (t PurchaseAttemptTable) ColumnList() string {
	return strings.Join(t.Columns(), ", ")
}
