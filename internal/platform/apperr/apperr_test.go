// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/coursehub/internal/platform/apperr"
)

/*
TestKindOf verifies that wrapped errors keep their taxonomy tag.
*/
func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"nil", nil, ""},
		{"auth", apperr.Unauthorized("expired"), apperr.KindAuth},
		{"wrapped_validation", fmt.Errorf("login: %w", apperr.ValidationError("bad email")), apperr.KindValidation},
		{"server", apperr.Server(503, ""), apperr.KindServer},
		{"network", apperr.Network(errors.New("dial tcp")), apperr.KindNetwork},
		{"timeout", apperr.Timeout(errors.New("deadline")), apperr.KindTimeout},
		{"foreign", errors.New("boom"), apperr.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.KindOf(tt.err))
		})
	}
}

/*
TestRetryable checks which kinds deserve retry guidance.
*/
func TestRetryable(t *testing.T) {
	assert.True(t, apperr.Server(500, "").Retryable())
	assert.True(t, apperr.Network(nil).Retryable())
	assert.True(t, apperr.Timeout(nil).Retryable())
	assert.False(t, apperr.Unauthorized("x").Retryable())
	assert.False(t, apperr.ValidationError("x").Retryable())
}

/*
TestUpstreamStatus checks the HTTP status used when rendering upstream failures.
*/
func TestUpstreamStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, apperr.Server(500, "").HTTPStatus)
	assert.Equal(t, http.StatusBadGateway, apperr.Network(nil).HTTPStatus)
	assert.Equal(t, http.StatusGatewayTimeout, apperr.Timeout(nil).HTTPStatus)
	assert.Equal(t, "Payment service down", apperr.Server(503, "Payment service down").Message)
}

/*
TestPaymentRequired keeps the upstream message and falls back to a default.
*/
func TestPaymentRequired(t *testing.T) {
	err := apperr.PaymentRequired("Card declined")
	assert.Equal(t, apperr.KindValidation, err.Kind)
	assert.Equal(t, http.StatusPaymentRequired, err.HTTPStatus)
	assert.Equal(t, "Card declined", err.Message)

	assert.NotEmpty(t, apperr.PaymentRequired("").Message)
}
