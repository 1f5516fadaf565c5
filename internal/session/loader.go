// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/taibuivan/coursehub/internal/platform/apperr"
	"github.com/taibuivan/coursehub/internal/platform/metrics"
	"github.com/taibuivan/coursehub/internal/platform/sec"
)

// # Loader States

// State is the position of a [Loader] in its state machine.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateAuthenticated
	StateAnonymous
	StateError
)

// String implements fmt.Stringer.
func (state State) String() string {
	switch state {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	case StateError:
		return "error"
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
	for candidate := StateIdle; candidate <= StateError; candidate++ {
		if candidate.String() == string(text) {
			*state = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// tokenLeeway tolerates clock skew with the marketplace API when reading exp.
const tokenLeeway = 30 * time.Second

// Snapshot is a point-in-time copy of a [Loader]. It is never shared with the loader.
type Snapshot struct {
	Session    Session
	State      State
	Err        error
	Generation uint64
}

// User is a shortcut for Snapshot.Session.User.
func (snapshot Snapshot) User() *UserProfile {
	return snapshot.Session.User
}

// Authenticated reports whether the snapshot carries a usable session.
//
// An Error snapshot still carries the last-known-good session.
func (snapshot Snapshot) Authenticated() bool {
	return snapshot.Session.Valid()
}

// Dependencies holds the injectable collaborators of a [Loader].
type Dependencies struct {
	// Store persists the session for this browser. Required.
	Store TokenStore

	// Backend is the marketplace API. Required.
	Backend Backend

	// Reconciler is told about every server-confirmed profile. Optional.
	Reconciler Reconciler

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// # Loader

// Loader reconciles the persisted session with server truth.
//
// # Ordering
//
// Every reload takes a sequence number. A response is applied only while its
// sequence is the most recently issued one and the generation has not moved.
// The generation increments whenever the session is replaced or cleared
// (login, logout, 401), so an in-flight reload can never resurrect a session
// that was cleared after it started.
//
// # Concurrency
//
// Loader is safe for concurrent use. Token store writes happen under the
// loader's lock so they are applied in the same order as state changes.
type Loader struct {
	mu sync.Mutex

	store      TokenStore
	backend    Backend
	reconciler Reconciler
	logger     *slog.Logger
	now        func() time.Time

	state      State
	session    Session
	lastErr    error
	generation uint64
	issued     uint64
	lastActive time.Time
}

// NewLoader constructs an Idle [Loader].
func NewLoader(deps Dependencies) *Loader {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Loader{
		store:      deps.Store,
		backend:    deps.Backend,
		reconciler: deps.Reconciler,
		logger:     deps.Logger,
		now:        deps.Now,
		state:      StateIdle,
		lastActive: deps.Now(),
	}
}

/*
Start leaves Idle.

Description: Loads the persisted session. With a token present the loader
enters Loading and reconciles with the server; otherwise it settles as
Anonymous without a network call. Calling Start again after the first time
only returns the current snapshot, so concurrent first requests share one
server round trip.

Parameters:
  - ctx: context.Context

Returns:
  - Snapshot: State after start-up
  - error: Reload failure (session preserved on non-auth errors)
*/
func (loader *Loader) Start(ctx context.Context) (Snapshot, error) {
	loader.mu.Lock()

	if loader.state != StateIdle {
		snapshot := loader.snapshotLocked()
		loader.mu.Unlock()
		return snapshot, nil
	}

	stored := loader.store.Load(ctx)
	if !stored.Valid() {
		loader.state = StateAnonymous
		snapshot := loader.snapshotLocked()
		loader.mu.Unlock()
		return snapshot, nil
	}

	// Last-known profile is shown while the server confirms it.
	loader.session = stored
	loader.state = StateLoading
	loader.mu.Unlock()

	return loader.Reload(ctx)
}

/*
Reload re-enters Loading from any state and applies the server answer.

Description: Idempotent and safe to call concurrently. When this call's
answer is superseded by a later reload or a session change, it is discarded
and the current snapshot is returned instead.

Parameters:
  - ctx: context.Context

Returns:
  - Snapshot: State after this call settled
  - error: The applied failure (auth, server, network, timeout)
*/
func (loader *Loader) Reload(ctx context.Context) (Snapshot, error) {
	loader.mu.Lock()
	loader.issued++
	sequence := loader.issued
	generation := loader.generation
	token := loader.session.AccessToken
	loader.state = StateLoading
	loader.lastActive = loader.now()
	loader.mu.Unlock()

	// Nothing to confirm, or a token the server would refuse anyway.
	if token == "" || sec.TokenExpired(token, loader.now(), tokenLeeway) {
		return loader.settle(ctx, sequence, generation, token, nil, apperr.Unauthorized("Session expired"))
	}

	result, err := loader.backend.Me(ctx, token)
	if err == nil && (result == nil || result.User == nil || result.User.ID == "") {
		err = apperr.Server(0, "The course service returned an incomplete profile")
	}

	return loader.settle(ctx, sequence, generation, token, result, err)
}

// settle applies the outcome of reload number sequence, unless it went stale.
func (loader *Loader) settle(ctx context.Context, sequence, generation uint64, token string, result *MeResult, err error) (Snapshot, error) {
	loader.mu.Lock()

	if sequence != loader.issued || generation != loader.generation {
		loader.logger.DebugContext(ctx, "session_reload_discarded",
			slog.Uint64("sequence", sequence),
			slog.Uint64("latest", loader.issued),
		)
		metrics.SessionReloads.WithLabelValues("discarded").Inc()
		snapshot := loader.snapshotLocked()
		loader.mu.Unlock()
		return snapshot, nil
	}

	switch {
	case err == nil:
		if result.AccessToken != "" {
			token = result.AccessToken
		}

		loader.session = Session{AccessToken: token, User: result.User.Clone()}
		loader.state = StateAuthenticated
		loader.lastErr = nil

		if saveErr := loader.store.Save(ctx, token, loader.session.User); saveErr != nil {
			loader.logger.WarnContext(ctx, "session_store_save_failed", slog.Any("error", saveErr))
		}

		metrics.SessionReloads.WithLabelValues("authenticated").Inc()
		snapshot := loader.snapshotLocked()
		loader.mu.Unlock()

		loader.reconcile(ctx, snapshot.Session.User)
		return snapshot, nil

	case apperr.Is(err, apperr.KindAuth):
		loader.invalidateLocked(ctx, "unauthorized")
		metrics.SessionReloads.WithLabelValues("anonymous").Inc()
		snapshot := loader.snapshotLocked()
		loader.mu.Unlock()

		// No token at all is the normal anonymous path, not a failure.
		if token == "" {
			return snapshot, nil
		}
		return snapshot, err

	default:
		// Last-known-good session stays; it is merely unverified.
		loader.state = StateError
		loader.lastErr = err
		loader.logger.WarnContext(ctx, "session_reload_failed",
			slog.String("kind", string(apperr.KindOf(err))),
			slog.Any("error", err),
		)
		metrics.SessionReloads.WithLabelValues("error").Inc()
		snapshot := loader.snapshotLocked()
		loader.mu.Unlock()
		return snapshot, err
	}
}

/*
Establish installs a freshly issued session (login, registration, activation,
social login).

Parameters:
  - ctx: context.Context
  - session: Session (must be complete)

Returns:
  - Snapshot: Authenticated snapshot
  - error: Validation error for incomplete sessions
*/
func (loader *Loader) Establish(ctx context.Context, session Session) (Snapshot, error) {
	if !session.Valid() {
		return loader.Snapshot(), apperr.ValidationError("Incomplete session returned by the course service")
	}

	loader.mu.Lock()
	loader.generation++
	loader.issued++
	loader.session = session.Clone()
	loader.state = StateAuthenticated
	loader.lastErr = nil
	loader.lastActive = loader.now()

	if err := loader.store.Save(ctx, session.AccessToken, loader.session.User); err != nil {
		loader.logger.WarnContext(ctx, "session_store_save_failed", slog.Any("error", err))
	}

	snapshot := loader.snapshotLocked()
	loader.mu.Unlock()

	loader.reconcile(ctx, snapshot.Session.User)
	return snapshot, nil
}

/*
Logout clears the local session and then tells the server.

Description: The local session is always cleared, whatever the server answers.

Parameters:
  - ctx: context.Context

Returns:
  - error: Server logout failure, for logging only
*/
func (loader *Loader) Logout(ctx context.Context) error {
	loader.mu.Lock()
	token := loader.session.AccessToken
	loader.invalidateLocked(ctx, "logout")
	loader.mu.Unlock()

	if token == "" {
		return nil
	}

	if err := loader.backend.Logout(ctx, token); err != nil {
		loader.logger.WarnContext(ctx, "session_server_logout_failed", slog.Any("error", err))
		return err
	}

	return nil
}

// Invalidate is the single place session state is cleared.
func (loader *Loader) Invalidate(ctx context.Context, reason string) Snapshot {
	loader.mu.Lock()
	defer loader.mu.Unlock()

	loader.invalidateLocked(ctx, reason)
	return loader.snapshotLocked()
}

// ObserveError lets collaborators report an upstream failure seen with this
// session's token. A 401 clears the session.
func (loader *Loader) ObserveError(ctx context.Context, err error) {
	if apperr.Is(err, apperr.KindAuth) {
		loader.Invalidate(ctx, "unauthorized")
	}
}

func (loader *Loader) invalidateLocked(ctx context.Context, reason string) {
	if err := loader.store.Clear(ctx); err != nil {
		loader.logger.WarnContext(ctx, "session_store_clear_failed", slog.Any("error", err))
	}

	hadSession := !loader.session.IsZero()

	loader.generation++
	loader.issued++
	loader.session = Session{}
	loader.state = StateAnonymous
	loader.lastErr = nil

	if hadSession {
		loader.logger.InfoContext(ctx, "session_cleared", slog.String("reason", reason))
	}
}

/*
ApplyProfileEdit optimistically merges a name/avatar edit, pushes it to the
server and reloads to reconcile.

Description: If the server rejects the edit, the optimistic change is rolled
back unless the session was replaced in the meantime.

Parameters:
  - ctx: context.Context
  - edit: ProfileEdit

Returns:
  - Snapshot: Reconciled snapshot
  - error: Unauthorized, validation or upstream failures
*/
func (loader *Loader) ApplyProfileEdit(ctx context.Context, edit ProfileEdit) (Snapshot, error) {
	if edit.Name != nil {
		normalized := norm.NFC.String(strings.TrimSpace(*edit.Name))
		edit.Name = &normalized
	}

	loader.mu.Lock()
	if !loader.session.Valid() {
		loader.mu.Unlock()
		return loader.Snapshot(), apperr.Unauthorized("Authentication required")
	}

	previous := loader.session.User
	optimistic := previous.Clone()
	edit.applyTo(optimistic)

	loader.session.User = optimistic
	token := loader.session.AccessToken
	generation := loader.generation

	if err := loader.store.Save(ctx, token, optimistic); err != nil {
		loader.logger.WarnContext(ctx, "session_store_save_failed", slog.Any("error", err))
	}
	loader.mu.Unlock()

	if err := loader.backend.UpdateProfile(ctx, token, edit); err != nil {
		if apperr.Is(err, apperr.KindAuth) {
			return loader.Invalidate(ctx, "unauthorized"), err
		}

		loader.mu.Lock()
		if loader.generation == generation && loader.session.User == optimistic {
			loader.session.User = previous
			if saveErr := loader.store.Save(ctx, token, previous); saveErr != nil {
				loader.logger.WarnContext(ctx, "session_store_save_failed", slog.Any("error", saveErr))
			}
		}
		snapshot := loader.snapshotLocked()
		loader.mu.Unlock()
		return snapshot, err
	}

	return loader.Reload(ctx)
}

// # Accessors

// Snapshot returns the current state.
func (loader *Loader) Snapshot() Snapshot {
	loader.mu.Lock()
	defer loader.mu.Unlock()

	return loader.snapshotLocked()
}

// LastActive returns when the loader last served a reload or a new session.
func (loader *Loader) LastActive() time.Time {
	loader.mu.Lock()
	defer loader.mu.Unlock()

	return loader.lastActive
}

func (loader *Loader) snapshotLocked() Snapshot {
	return Snapshot{
		Session:    loader.session.Clone(),
		State:      loader.state,
		Err:        loader.lastErr,
		Generation: loader.generation,
	}
}

func (loader *Loader) reconcile(ctx context.Context, user *UserProfile) {
	if loader.reconciler != nil && user != nil {
		loader.reconciler.Reconcile(ctx, user)
	}
}
