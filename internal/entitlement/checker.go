// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package entitlement answers whether a user may view a course's protected content.

Decision order:

 1. No user: denied.
 2. Course in the server purchase list: granted.
 3. Live pending grant for (user, course): granted provisionally.
 4. Otherwise: denied.

A pending grant only ever adds access, it is never used to deny it. The real
enforcement happens server-side when content is delivered.
*/
package entitlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/coursehub/internal/platform/apperr"
	"github.com/taibuivan/coursehub/internal/platform/metrics"
	"github.com/taibuivan/coursehub/internal/session"
)

// Source names the rule that produced a [Decision].
type Source string

const (
	SourceServer  Source = "server"
	SourcePending Source = "pending"
	SourceNone    Source = "none"
)

// Decision is the outcome of an entitlement check.
type Decision struct {
	CourseID string `json:"course_id"`
	Entitled bool   `json:"entitled"`
	Source   Source `json:"source"`
}

// Checker evaluates entitlements against the session and the [PendingCache].
type Checker struct {
	cache  PendingCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewChecker constructs a [Checker]. ttl is the lifetime of pending grants.
func NewChecker(cache PendingCache, ttl time.Duration, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{cache: cache, ttl: ttl, logger: logger}
}

/*
Check evaluates access to courseID for user.

Parameters:
  - ctx: context.Context
  - user: *session.UserProfile (nil for anonymous)
  - courseID: string

Returns:
  - Decision: Entitled flag and the rule that decided it
*/
func (checker *Checker) Check(ctx context.Context, user *session.UserProfile, courseID string) Decision {
	decision := checker.evaluate(ctx, user, courseID)
	metrics.EntitlementChecks.WithLabelValues(string(decision.Source)).Inc()
	return decision
}

func (checker *Checker) evaluate(ctx context.Context, user *session.UserProfile, courseID string) Decision {
	denied := Decision{CourseID: courseID, Source: SourceNone}

	if user == nil || user.ID == "" || courseID == "" {
		return denied
	}

	if user.HasPurchased(courseID) {
		return Decision{CourseID: courseID, Entitled: true, Source: SourceServer}
	}

	pending, err := checker.cache.Has(ctx, Key{UserID: user.ID, CourseID: courseID})
	if err != nil {
		// An unreadable cache cannot grant anything.
		checker.logger.WarnContext(ctx, "entitlement_pending_read_failed",
			slog.String("course_id", courseID),
			slog.Any("error", err),
		)
		return denied
	}

	if pending {
		return Decision{CourseID: courseID, Entitled: true, Source: SourcePending}
	}

	return denied
}

// IsEntitled reports whether user may view courseID.
func (checker *Checker) IsEntitled(ctx context.Context, user *session.UserProfile, courseID string) bool {
	return checker.Check(ctx, user, courseID).Entitled
}

/*
GrantPending records a provisional grant after a verified purchase.

Parameters:
  - ctx: context.Context
  - userID: string
  - courseID: string

Returns:
  - error: Validation error for empty ids, or a storage failure
*/
func (checker *Checker) GrantPending(ctx context.Context, userID, courseID string) error {
	if userID == "" || courseID == "" {
		return apperr.ValidationError("A pending entitlement needs both a user and a course")
	}

	if err := checker.cache.Set(ctx, Key{UserID: userID, CourseID: courseID}, checker.ttl); err != nil {
		return err
	}

	checker.logger.InfoContext(ctx, "entitlement_pending_granted",
		slog.String("user_id", userID),
		slog.String("course_id", courseID),
		slog.Duration("ttl", checker.ttl),
	)
	return nil
}

// Reconcile drops pending grants the server purchase list now confirms.
// Unconfirmed grants are left to expire.
func (checker *Checker) Reconcile(ctx context.Context, user *session.UserProfile) {
	if user == nil || user.ID == "" || len(user.PurchasedCourseIDs) == 0 {
		return
	}

	keys := make([]Key, 0, len(user.PurchasedCourseIDs))
	for _, courseID := range user.PurchasedCourseIDs {
		keys = append(keys, Key{UserID: user.ID, CourseID: courseID})
	}

	if err := checker.cache.Delete(ctx, keys...); err != nil {
		checker.logger.WarnContext(ctx, "entitlement_reconcile_failed", slog.Any("error", err))
	}
}
