// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package purchase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taibuivan/coursehub/internal/platform/apperr"
	"github.com/taibuivan/coursehub/internal/platform/constants"
	"github.com/taibuivan/coursehub/internal/platform/metrics"
	"github.com/taibuivan/coursehub/internal/platform/validate"
)

// ledgerCancelled marks an attempt closed by the user before paying.
const ledgerCancelled = "cancelled"

// Dependencies holds the collaborators of a [Coordinator].
type Dependencies struct {
	Backend      Backend
	Entitlements Entitlements

	// Recorder defaults to [NopRecorder].
	Recorder AttemptRecorder

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	// VerifyTimeout bounds payment verification, independently of the caller.
	VerifyTimeout time.Duration

	// AllowUnverified treats a server error during verification as success.
	// It is honoured only when Development is also true.
	AllowUnverified bool
	Development     bool
}

// Status is the observable state of one checkout.
type Status struct {
	CourseID string           `json:"course_id"`
	State    State            `json:"state"`
	Pending  *PendingPurchase `json:"pending,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Result is the outcome of [Coordinator.Complete].
type Result struct {
	CourseID        string `json:"course_id"`
	State           State  `json:"state"`
	AlreadyEnrolled bool   `json:"already_enrolled,omitempty"`
	Unverified      bool   `json:"unverified,omitempty"`
}

type flowKey struct {
	userID   string
	courseID string
}

type flow struct {
	state     State
	pending   *PendingPurchase
	err       error
	updatedAt time.Time
}

// Coordinator runs checkouts, one per (user, course).
//
// # Concurrency
//
// Coordinator is safe for concurrent use. Network calls happen outside the
// lock; a flow in Verifying cannot be replaced or cancelled, so the
// verification result always lands on the flow that started it.
type Coordinator struct {
	mu    sync.Mutex
	flows map[flowKey]*flow

	backend         Backend
	entitlements    Entitlements
	recorder        AttemptRecorder
	logger          *slog.Logger
	now             func() time.Time
	verifyTimeout   time.Duration
	allowUnverified bool
}

// NewCoordinator constructs a [Coordinator].
func NewCoordinator(deps Dependencies) *Coordinator {
	if deps.Recorder == nil {
		deps.Recorder = NopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.VerifyTimeout <= 0 {
		deps.VerifyTimeout = constants.DefaultVerifyTimeout
	}

	allowUnverified := deps.AllowUnverified && deps.Development
	if allowUnverified {
		deps.Logger.Warn("purchase_unverified_fallback_enabled")
	}

	return &Coordinator{
		flows:           make(map[flowKey]*flow),
		backend:         deps.Backend,
		entitlements:    deps.Entitlements,
		recorder:        deps.Recorder,
		logger:          deps.Logger,
		now:             deps.Now,
		verifyTimeout:   deps.VerifyTimeout,
		allowUnverified: allowUnverified,
	}
}

/*
Begin moves Idle to AwaitingGateway by requesting a gateway order.

Description: Requires an authenticated session and a course the user is not
already entitled to. A checkout still awaiting the gateway is replaced by the
new one. Order creation failures are reported immediately, without retry.

Parameters:
  - ctx: context.Context
  - holder: SessionHolder
  - courseID: string

Returns:
  - Status: AwaitingGateway with the order to open the gateway with
  - error: Unauthorized, Conflict, or the mapped upstream failure
*/
func (coordinator *Coordinator) Begin(ctx context.Context, holder SessionHolder, courseID string) (Status, error) {
	snapshot := holder.Snapshot()
	if !snapshot.Authenticated() {
		return Status{CourseID: courseID, State: StateIdle}, apperr.Unauthorized("Sign in to purchase this course")
	}

	user := snapshot.User()
	key := flowKey{userID: user.ID, courseID: courseID}

	if coordinator.entitlements.IsEntitled(ctx, user, courseID) {
		return coordinator.State(user.ID, courseID), apperr.Conflict("You are already enrolled in this course")
	}

	coordinator.mu.Lock()
	if current, found := coordinator.flows[key]; found && current.state == StateVerifying {
		coordinator.mu.Unlock()
		return coordinator.State(user.ID, courseID), apperr.Conflict("A payment for this course is being verified")
	}
	coordinator.mu.Unlock()

	order, err := coordinator.backend.CreateOrder(ctx, snapshot.Session.AccessToken, courseID)
	if err == nil && (order == nil || order.OrderID == "") {
		err = apperr.Server(0, "The course service returned an incomplete order")
	}
	if err != nil {
		holder.ObserveError(ctx, err)
		coordinator.logger.WarnContext(ctx, "purchase_order_failed",
			slog.String("course_id", courseID),
			slog.String("kind", string(apperr.KindOf(err))),
			slog.Any("error", err),
		)
		return Status{CourseID: courseID, State: StateIdle}, err
	}

	now := coordinator.now()
	pending := &PendingPurchase{
		AttemptID: ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		UserID:    user.ID,
		CourseID:  courseID,
		Order:     *order,
		StartedAt: now,
	}

	coordinator.mu.Lock()
	current, found := coordinator.flows[key]
	if found && current.state == StateVerifying {
		// Another request reached the gateway callback while this order was being created.
		coordinator.mu.Unlock()
		return coordinator.State(user.ID, courseID), apperr.Conflict("A payment for this course is being verified")
	}
	var superseded *PendingPurchase
	if found && current.state == StateAwaitingGateway {
		superseded = current.pending
	}
	coordinator.flows[key] = &flow{state: StateAwaitingGateway, pending: pending, updatedAt: now}
	coordinator.mu.Unlock()

	if superseded != nil {
		coordinator.record(ctx, superseded, ledgerCancelled, "", apperr.Conflict("Superseded by a new checkout"))
	}
	coordinator.transition(ctx, pending, StateAwaitingGateway, "", nil)

	return coordinator.State(user.ID, courseID), nil
}

/*
Complete moves AwaitingGateway to Verifying and settles on Granted or Failed.

Description: Verification runs on a context detached from the caller's
cancellation, bounded by its own timeout, and always runs to completion. On
success (or already enrolled) a pending entitlement is written and the session
reloaded; a reload failure does not undo the grant. Timeouts and network
failures never grant.

Parameters:
  - ctx: context.Context
  - holder: SessionHolder
  - courseID: string
  - reference: PaymentReference from the gateway success callback

Returns:
  - Result: Granted or Failed
  - error: The failure shown to the user
*/
func (coordinator *Coordinator) Complete(ctx context.Context, holder SessionHolder, courseID string, reference PaymentReference) (Result, error) {
	snapshot := holder.Snapshot()
	if !snapshot.Authenticated() {
		return Result{CourseID: courseID, State: StateIdle}, apperr.Unauthorized("Sign in to complete this purchase")
	}

	validator := &validate.Validator{}
	validator.Required("payment_id", reference.PaymentID).Required("order_id", reference.OrderID)
	if err := validator.Err(); err != nil {
		return Result{CourseID: courseID, State: coordinator.State(snapshot.User().ID, courseID).State}, err
	}

	user := snapshot.User()
	key := flowKey{userID: user.ID, courseID: courseID}

	coordinator.mu.Lock()
	current, found := coordinator.flows[key]
	if !found || current.state != StateAwaitingGateway {
		coordinator.mu.Unlock()
		return Result{CourseID: courseID, State: coordinator.State(user.ID, courseID).State},
			apperr.Conflict("No checkout is awaiting payment for this course")
	}
	if current.pending.Order.OrderID != reference.OrderID {
		coordinator.mu.Unlock()
		return Result{CourseID: courseID, State: StateAwaitingGateway},
			apperr.ValidationError("The payment does not belong to the open order")
	}
	current.state = StateVerifying
	current.updatedAt = coordinator.now()
	pending := current.pending
	coordinator.mu.Unlock()

	coordinator.transition(ctx, pending, StateVerifying, reference.PaymentID, nil)

	verifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), coordinator.verifyTimeout)
	defer cancel()

	verification, err := coordinator.backend.VerifyPayment(verifyCtx, snapshot.Session.AccessToken, VerifyInput{
		Reference: reference,
		CourseID:  courseID,
		UserID:    user.ID,
	})
	if err == nil && verification == nil {
		err = apperr.Server(0, "The course service returned an empty verification")
	}

	result := Result{CourseID: courseID}
	var failure error

	switch {
	case err == nil && (verification.Success || verification.AlreadyEnrolled):
		result.AlreadyEnrolled = verification.AlreadyEnrolled

	case err == nil:
		failure = apperr.PaymentRequired(verification.Message)

	case coordinator.allowUnverified && apperr.Is(err, apperr.KindServer):
		result.Unverified = true
		coordinator.logger.WarnContext(verifyCtx, "purchase_unverified_grant",
			slog.String("course_id", courseID),
			slog.String("attempt_id", pending.AttemptID),
			slog.Any("error", err),
		)

	default:
		failure = err
		holder.ObserveError(verifyCtx, err)
	}

	if failure != nil {
		result.State = StateFailed
		coordinator.settle(key, current, StateFailed, failure)
		coordinator.transition(verifyCtx, pending, StateFailed, reference.PaymentID, failure)
		return result, failure
	}

	result.State = StateGranted
	if grantErr := coordinator.entitlements.GrantPending(verifyCtx, user.ID, courseID); grantErr != nil {
		coordinator.logger.ErrorContext(verifyCtx, "purchase_pending_grant_failed",
			slog.String("course_id", courseID),
			slog.Any("error", grantErr),
		)
	}
	coordinator.settle(key, current, StateGranted, nil)
	coordinator.transition(verifyCtx, pending, StateGranted, reference.PaymentID, nil)

	if _, reloadErr := holder.Reload(verifyCtx); reloadErr != nil {
		coordinator.logger.WarnContext(verifyCtx, "purchase_session_reload_failed",
			slog.String("course_id", courseID),
			slog.String("kind", string(apperr.KindOf(reloadErr))),
		)
	}

	return result, nil
}

/*
Cancel returns AwaitingGateway to Idle after the gateway was dismissed.

Description: Only the local checkout is dropped; a transaction already started
inside the gateway is left to the gateway. Cancelling with nothing open is a
no-op. A checkout under verification cannot be cancelled.

Parameters:
  - ctx: context.Context
  - holder: SessionHolder
  - courseID: string

Returns:
  - Status: Resulting state
  - error: Unauthorized or Conflict
*/
func (coordinator *Coordinator) Cancel(ctx context.Context, holder SessionHolder, courseID string) (Status, error) {
	snapshot := holder.Snapshot()
	if !snapshot.Authenticated() {
		return Status{CourseID: courseID, State: StateIdle}, apperr.Unauthorized("Authentication required")
	}

	user := snapshot.User()
	key := flowKey{userID: user.ID, courseID: courseID}

	coordinator.mu.Lock()
	current, found := coordinator.flows[key]
	if !found || current.state != StateAwaitingGateway {
		coordinator.mu.Unlock()
		status := coordinator.State(user.ID, courseID)
		if status.State == StateVerifying {
			return status, apperr.Conflict("The payment is already being verified")
		}
		return status, nil
	}
	delete(coordinator.flows, key)
	coordinator.mu.Unlock()

	metrics.PurchaseTransitions.WithLabelValues(StateIdle.String()).Inc()
	coordinator.record(ctx, current.pending, ledgerCancelled, "", nil)
	coordinator.logger.InfoContext(ctx, "purchase_cancelled",
		slog.String("course_id", courseID),
		slog.String("attempt_id", current.pending.AttemptID),
	)

	return Status{CourseID: courseID, State: StateIdle}, nil
}

/*
Fail moves AwaitingGateway to Failed when the gateway reports payment.failed.

Parameters:
  - ctx: context.Context
  - holder: SessionHolder
  - courseID: string
  - reason: Gateway failure description, shown to the user

Returns:
  - Status: Failed
  - error: Unauthorized or Conflict
*/
func (coordinator *Coordinator) Fail(ctx context.Context, holder SessionHolder, courseID, reason string) (Status, error) {
	snapshot := holder.Snapshot()
	if !snapshot.Authenticated() {
		return Status{CourseID: courseID, State: StateIdle}, apperr.Unauthorized("Authentication required")
	}

	user := snapshot.User()
	key := flowKey{userID: user.ID, courseID: courseID}
	failure := apperr.PaymentRequired(reason)

	coordinator.mu.Lock()
	current, found := coordinator.flows[key]
	if !found || current.state != StateAwaitingGateway {
		coordinator.mu.Unlock()
		return coordinator.State(user.ID, courseID), apperr.Conflict("No checkout is awaiting payment for this course")
	}
	current.state = StateFailed
	current.err = failure
	current.updatedAt = coordinator.now()
	pending := current.pending
	current.pending = nil
	coordinator.mu.Unlock()

	coordinator.transition(ctx, pending, StateFailed, "", failure)
	return coordinator.State(user.ID, courseID), nil
}

// State returns the checkout state for (userID, courseID). Unknown pairs are Idle.
func (coordinator *Coordinator) State(userID, courseID string) Status {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	status := Status{CourseID: courseID, State: StateIdle}

	current, found := coordinator.flows[flowKey{userID: userID, courseID: courseID}]
	if !found {
		return status
	}

	status.State = current.state
	if current.pending != nil {
		pending := *current.pending
		status.Pending = &pending
	}
	if current.err != nil {
		status.Error = current.err.Error()
	}

	return status
}

// # Housekeeping

// Sweep forgets finished checkouts older than the retention window.
func (coordinator *Coordinator) Sweep() int {
	cutoff := coordinator.now().Add(-constants.PurchaseFlowRetention)

	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	removed := 0
	for key, current := range coordinator.flows {
		if current.state.Terminal() && current.updatedAt.Before(cutoff) {
			delete(coordinator.flows, key)
			removed++
		}
	}

	return removed
}

// Run sweeps periodically until ctx is cancelled.
func (coordinator *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(constants.PurchaseSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			coordinator.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// History returns the recorded attempts of userID.
func (coordinator *Coordinator) History(ctx context.Context, userID string, limit int) ([]Attempt, error) {
	return coordinator.recorder.ListByUser(ctx, userID, limit)
}

// settle moves the flow to a terminal state if it is still the one under key.
func (coordinator *Coordinator) settle(key flowKey, target *flow, state State, failure error) {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	if coordinator.flows[key] != target {
		return
	}

	target.state = state
	target.err = failure
	target.pending = nil
	target.updatedAt = coordinator.now()
}

func (coordinator *Coordinator) transition(ctx context.Context, pending *PendingPurchase, state State, paymentID string, failure error) {
	metrics.PurchaseTransitions.WithLabelValues(state.String()).Inc()

	attributes := []any{
		slog.String("course_id", pending.CourseID),
		slog.String("attempt_id", pending.AttemptID),
		slog.String("state", state.String()),
	}
	if failure != nil {
		coordinator.logger.WarnContext(ctx, "purchase_transition_failed", append(attributes,
			slog.String("kind", string(apperr.KindOf(failure))),
			slog.Any("error", failure),
		)...)
	} else {
		coordinator.logger.InfoContext(ctx, "purchase_transition", attributes...)
	}

	coordinator.record(ctx, pending, state.String(), paymentID, failure)
}

func (coordinator *Coordinator) record(ctx context.Context, pending *PendingPurchase, state, paymentID string, failure error) {
	attempt := Attempt{
		ID:             pending.AttemptID,
		UserID:         pending.UserID,
		CourseID:       pending.CourseID,
		GatewayOrderID: pending.Order.OrderID,
		PaymentID:      paymentID,
		State:          state,
		CreatedAt:      pending.StartedAt,
	}
	if failure != nil {
		attempt.FailureKind = string(apperr.KindOf(failure))
		attempt.Message = failure.Error()
	}

	if err := coordinator.recorder.Record(ctx, attempt); err != nil {
		coordinator.logger.WarnContext(ctx, "purchase_ledger_write_failed",
			slog.String("attempt_id", pending.AttemptID),
			slog.Any("error", err),
		)
	}
}
