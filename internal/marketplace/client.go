// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package marketplace is the typed REST client for the remote course marketplace API.

# Error Boundary

Every failure leaving this package is an [apperr.AppError] with a Kind:

  - 401: KindAuth
  - 400, 409, 422: KindValidation, with the server message verbatim
  - 403: KindForbidden
  - 404: KindNotFound
  - 429: KindRateLimited
  - 5xx: KindServer
  - transport failures: KindNetwork
  - deadlines: KindTimeout

Callers never see raw transport errors or loosely shaped error payloads.
*/
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/taibuivan/coursehub/internal/platform/apperr"
	"github.com/taibuivan/coursehub/internal/platform/constants"
	"github.com/taibuivan/coursehub/internal/platform/metrics"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 16 << 10

// operationVerifyPayment runs under the caller's deadline only.
const operationVerifyPayment = "verify_payment"

// Client talks to the marketplace API.
//
// Client is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

/*
New constructs a [Client].

Parameters:
  - baseURL: Absolute API root, e.g. https://api.example.com/api/v1
  - timeout: Per-request timeout, except for payment verification
  - logger: *slog.Logger

Returns:
  - *Client
  - error: if baseURL is not absolute
*/
func New(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("marketplace: invalid base URL %q", baseURL)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// # Transport

// call performs one request. A nil body sends no payload; a nil out discards
// the response body.
func (client *Client) call(ctx context.Context, operation, method, path, token string, body, out any) error {
	if client.timeout > 0 && operation != operationVerifyPayment {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, client.timeout)
		defer cancel()
	}

	err := client.do(ctx, method, path, token, body, out)
	if err != nil {
		kind := apperr.KindOf(err)
		metrics.UpstreamErrors.WithLabelValues(operation, string(kind)).Inc()

		// Auth and validation failures are routine; only log the rest.
		if kind != apperr.KindAuth && kind != apperr.KindValidation {
			client.logger.WarnContext(ctx, "marketplace_call_failed",
				slog.String("operation", operation),
				slog.String("kind", string(kind)),
				slog.String("message", err.Error()),
				slog.Any("cause", errors.Unwrap(err)),
			)
		}
	}
	return err
}

func (client *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperr.Internal(fmt.Errorf("marketplace_encode_failed: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, method, client.baseURL.JoinPath(path).String(), reader)
	if err != nil {
		return apperr.Internal(fmt.Errorf("marketplace_request_build_failed: %w", err))
	}

	httpRequest.Header.Set("Accept", "application/json")
	if body != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpRequest.Header.Set(constants.HeaderAuthorization, "Bearer "+token)
	}

	response, err := client.httpClient.Do(httpRequest)
	if err != nil {
		return mapTransportError(ctx, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return mapStatus(response)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}

	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		// A truncated body after a 2xx is an upstream defect, not ours.
		if isTimeout(ctx, err) {
			return apperr.Timeout(err)
		}
		return apperr.Server(response.StatusCode, "The course service returned an unreadable response")
	}

	return nil
}

// # Error Mapping

type errorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// mapStatus turns a non-2xx response into an [apperr.AppError].
func mapStatus(response *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))

	var payload errorPayload
	_ = json.Unmarshal(raw, &payload)

	message := payload.Message
	if message == "" {
		message = payload.Error
	}

	switch status := response.StatusCode; {
	case status == http.StatusUnauthorized:
		if message == "" {
			message = "Your session has expired. Please sign in again."
		}
		return apperr.Unauthorized(message)

	case status == http.StatusForbidden:
		if message == "" {
			message = "You are not allowed to do that"
		}
		return apperr.Forbidden(message)

	case status == http.StatusNotFound:
		if message != "" {
			err := apperr.NotFound("Resource")
			err.Message = message
			return err
		}
		return apperr.NotFound("Resource")

	case status == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(response.Header.Get("Retry-After"))
		return apperr.RateLimited(retryAfter)

	case status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		if message == "" {
			message = "The request was rejected by the course service"
		}
		return apperr.ValidationError(message)

	case status >= 500:
		return apperr.Server(status, "")

	default:
		return apperr.Server(status, message)
	}
}

// mapTransportError classifies failures where no HTTP response arrived.
func mapTransportError(ctx context.Context, err error) error {
	if isTimeout(ctx, err) {
		return apperr.Timeout(err)
	}
	return apperr.Network(err)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}

	var netError net.Error
	return errors.As(err, &netError) && netError.Timeout()
}
