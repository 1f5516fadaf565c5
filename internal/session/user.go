// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session establishes who the browser's user is and keeps that belief
reconciled with the marketplace API.

# Components

  - TokenStore: durable storage of the access token and last-known profile.
  - Loader: the Idle → Loading → {Authenticated, Anonymous, Error} state machine.
  - Registry: maps browser session ids to loaders.

# Invariants

A [Session] always has both an access token and a user, or neither. Session state
is cleared in exactly one place, [Loader.Invalidate], which serves both logout and
any 401 seen by a collaborator.
*/
package session

import (
	"slices"

	"github.com/taibuivan/coursehub/internal/platform/sec"
)

// # Domain Entities

// UserProfile is the authenticated user as reported by the marketplace API.
type UserProfile struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Email              string       `json:"email"`
	AvatarURL          string       `json:"avatar_url,omitempty"`
	Role               sec.UserRole `json:"role"`
	IsVerified         bool         `json:"is_verified"`
	PurchasedCourseIDs []string     `json:"purchased_course_ids"`
}

// HasPurchased reports whether the server purchase list contains courseID.
func (user *UserProfile) HasPurchased(courseID string) bool {
	if user == nil || courseID == "" {
		return false
	}
	return slices.Contains(user.PurchasedCourseIDs, courseID)
}

// IsAdmin reports whether the user may open the administration views.
func (user *UserProfile) IsAdmin() bool {
	return user != nil && user.Role.AtLeast(sec.RoleAdmin)
}

// Clone returns a deep copy so callers never share the loader's profile.
func (user *UserProfile) Clone() *UserProfile {
	if user == nil {
		return nil
	}
	copied := *user
	copied.PurchasedCourseIDs = slices.Clone(user.PurchasedCourseIDs)
	return &copied
}

// Session is the client's current belief about who is logged in and with what token.
type Session struct {
	AccessToken string       `json:"-"`
	User        *UserProfile `json:"user"`
}

// IsZero reports whether the session is empty.
func (session Session) IsZero() bool {
	return session.AccessToken == "" && session.User == nil
}

// Valid reports whether both halves of the session are present.
func (session Session) Valid() bool {
	return session.AccessToken != "" && session.User != nil && session.User.ID != ""
}

// Clone returns a deep copy of the session.
func (session Session) Clone() Session {
	return Session{AccessToken: session.AccessToken, User: session.User.Clone()}
}

// ProfileEdit carries the locally editable profile fields. Nil means unchanged.
type ProfileEdit struct {
	Name      *string
	AvatarURL *string
}

// Empty reports whether the edit changes nothing.
func (edit ProfileEdit) Empty() bool {
	return edit.Name == nil && edit.AvatarURL == nil
}

// applyTo merges the edit into user in place.
func (edit ProfileEdit) applyTo(user *UserProfile) {
	if edit.Name != nil {
		user.Name = *edit.Name
	}
	if edit.AvatarURL != nil {
		user.AvatarURL = *edit.AvatarURL
	}
}

// # Field Identifiers

const (
	FieldName     = "name"
	FieldEmail    = "email"
	FieldPassword = "password"
	FieldToken    = "activation_token"
	FieldCode     = "activation_code"
	FieldAvatar   = "avatar_url"
)
