// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package purchase coordinates checkout, payment verification and the
provisional entitlement grant as one workflow per (user, course).

State machine:

	Idle -> AwaitingGateway -> Verifying -> Granted
	                    |            \---> Failed
	                    |---> Idle (cancel)
	                    \---> Failed (gateway payment.failed)

The payment gateway itself runs in the browser. This package only sees the
order it asked the marketplace for and the payment reference the gateway
handed back.
*/
package purchase

import (
	"context"
	"fmt"
	"time"

	"github.com/taibuivan/coursehub/internal/session"
)

// # Flow States

// State is the position of a checkout in its state machine.
type State int

const (
	StateIdle State = iota
	StateAwaitingGateway
	StateVerifying
	StateGranted
	StateFailed
)

// String implements fmt.Stringer.
func (state State) String() string {
	switch state {
	case StateIdle:
		return "idle"
	case StateAwaitingGateway:
		return "awaiting_gateway"
	case StateVerifying:
		return "verifying"
	case StateGranted:
		return "granted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(state))
	}
}

// MarshalText renders the state as its name in JSON payloads.
func (state State) MarshalText() ([]byte, error) {
	return []byte(state.String()), nil
}

// UnmarshalText parses a name produced by [State.MarshalText].
func (state *State) UnmarshalText(text []byte) error {
	for candidate := StateIdle; candidate <= StateFailed; candidate++ {
		if candidate.String() == string(text) {
			*state = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Terminal reports whether the checkout has finished.
func (state State) Terminal() bool {
	return state == StateGranted || state == StateFailed
}

// # Gateway Data

// Order is the descriptor the browser needs to open the payment gateway.
type Order struct {
	OrderID    string `json:"order_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Key        string `json:"key"`
	CourseName string `json:"course_name"`
}

// PaymentReference is what the gateway success callback hands back.
type PaymentReference struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Signature string `json:"signature"`
}

// VerifyInput is sent to the marketplace to confirm a payment.
type VerifyInput struct {
	Reference PaymentReference
	CourseID  string
	UserID    string
}

// Verification is the marketplace's answer to a verification request.
type Verification struct {
	Success         bool
	AlreadyEnrolled bool
	Message         string
}

// PendingPurchase exists from order creation until verification finishes or
// the gateway is dismissed.
type PendingPurchase struct {
	AttemptID string    `json:"attempt_id"`
	UserID    string    `json:"-"`
	CourseID  string    `json:"course_id"`
	Order     Order     `json:"order"`
	StartedAt time.Time `json:"started_at"`
}

// # Collaborators

// Backend is the subset of the marketplace API used for checkout.
type Backend interface {
	// CreateOrder asks the marketplace for a gateway order for courseID.
	CreateOrder(ctx context.Context, accessToken, courseID string) (*Order, error)

	// VerifyPayment confirms a gateway payment reference.
	VerifyPayment(ctx context.Context, accessToken string, input VerifyInput) (*Verification, error)
}

// Entitlements is the entitlement checker as seen by the coordinator.
type Entitlements interface {
	IsEntitled(ctx context.Context, user *session.UserProfile, courseID string) bool
	GrantPending(ctx context.Context, userID, courseID string) error
}

// SessionHolder is the browser session a checkout runs under.
// [*session.Loader] satisfies it.
type SessionHolder interface {
	Snapshot() session.Snapshot
	Reload(ctx context.Context) (session.Snapshot, error)
	ObserveError(ctx context.Context, err error)
}
