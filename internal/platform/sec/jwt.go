// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides token inspection and random token primitives.
//
// # Trust Boundary
//
// Access tokens are issued and verified by the marketplace API. This service
// never holds the signing key, so it only reads claims without verifying the
// signature. Inspected claims are used to skip a doomed network call for a
// token that has visibly expired, never to grant anything.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned when the access token is opaque (not a JWT).
var ErrNotJWT = errors.New("sec: access token is not a JWT")

// AccessClaims is the subset of access-token claims the edge reads.
type AccessClaims struct {
	jwt.RegisteredClaims

	// Role is present on tokens issued by the marketplace API.
	Role string `json:"role,omitempty"`
}

// InspectAccessToken decodes the claims of tokenString without verifying its signature.
func InspectAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parser := jwt.NewParser()

	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}

	return claims, nil
}

// TokenExpired reports whether tokenString is a JWT whose exp claim is at or
// before now minus leeway. Opaque tokens and tokens without exp are never
// considered expired; the server decides for those.
func TokenExpired(tokenString string, now time.Time, leeway time.Duration) bool {
	claims, err := InspectAccessToken(tokenString)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.Time.After(now.Add(-leeway))
}
