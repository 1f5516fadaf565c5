// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
)

// # Token Storage

// TokenStore persists the access token and the last-known [UserProfile] for one
// browser so the session survives page reloads and process restarts.
type TokenStore interface {

	/*
		Save persists token and user together.

		Parameters:
		  - ctx: context.Context
		  - token: string (must be non-empty)
		  - user: *UserProfile (must be non-nil)

		Returns:
		  - error: storage failures; callers log and continue
	*/
	Save(ctx context.Context, token string, user *UserProfile) error

	/*
		Load returns the last persisted session, or an empty one.

		Description: Never fails. Missing data, corrupt data and storage
		outages all read as "no session".

		Parameters:
		  - ctx: context.Context

		Returns:
		  - Session: persisted or zero value
	*/
	Load(ctx context.Context) Session

	/*
		Clear removes all persisted session data.

		Parameters:
		  - ctx: context.Context

		Returns:
		  - error: storage failures
	*/
	Clear(ctx context.Context) error
}

// StoreFactory hands out a [TokenStore] scoped to one browser session id.
type StoreFactory interface {
	For(browserSessionID string) TokenStore
}

// # Remote Collaborators

// MeResult is the payload of the marketplace "who am I" endpoint.
type MeResult struct {
	User *UserProfile
	// AccessToken is set when the backend rotated the token.
	AccessToken string
}

// Backend is the subset of the marketplace API the [Loader] depends on.
type Backend interface {
	// Me confirms accessToken and returns the fresh profile. 401 maps to apperr.KindAuth.
	Me(ctx context.Context, accessToken string) (*MeResult, error)

	// Logout invalidates the server-side session.
	Logout(ctx context.Context, accessToken string) error

	// UpdateProfile pushes locally edited profile fields.
	UpdateProfile(ctx context.Context, accessToken string, edit ProfileEdit) error
}

// LoginInput holds credentials for password login.
type LoginInput struct {
	Email    string
	Password string
}

// RegisterInput holds the data required to enroll a new student.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// ActivateInput confirms a registration with the emailed code.
type ActivateInput struct {
	ActivationToken string
	ActivationCode  string
}

// SocialInput carries the identity asserted by a social login provider.
type SocialInput struct {
	Email     string
	Name      string
	AvatarURL string
}

// Authenticator issues sessions. Each call returns a complete [Session] or an error.
type Authenticator interface {
	Login(ctx context.Context, input LoginInput) (Session, error)
	Register(ctx context.Context, input RegisterInput) (Session, error)
	Activate(ctx context.Context, input ActivateInput) (Session, error)
	SocialAuth(ctx context.Context, input SocialInput) (Session, error)
}

// Reconciler is notified with every server-confirmed profile.
// The entitlement checker uses it to retire pending grants.
type Reconciler interface {
	Reconcile(ctx context.Context, user *UserProfile)
}
