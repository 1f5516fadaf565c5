// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/coursehub/internal/platform/sec"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := sec.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: "user",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

/*
TestInspectAccessToken reads claims without knowing the signing key.
*/
func TestInspectAccessToken(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))

	claims, err := sec.InspectAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "user", claims.Role)

	_, err = sec.InspectAccessToken("opaque-token")
	assert.ErrorIs(t, err, sec.ErrNotJWT)
}

/*
TestTokenExpired covers expired, live and opaque tokens.
*/
func TestTokenExpired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"expired", signedToken(t, now.Add(-time.Hour)), true},
		{"within_leeway", signedToken(t, now.Add(-10*time.Second)), false},
		{"live", signedToken(t, now.Add(time.Hour)), false},
		{"opaque", "not-a-jwt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sec.TokenExpired(tt.token, now, 30*time.Second))
		})
	}
}

/*
TestGenerateSecureToken verifies length and uniqueness.
*/
func TestGenerateSecureToken(t *testing.T) {
	first, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)
	second, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)

	assert.Len(t, first, 43)
	assert.NotEqual(t, first, second)
	assert.Len(t, sec.HashToken(first), 64)
	assert.Equal(t, sec.HashToken(first), sec.HashToken(first))
}
