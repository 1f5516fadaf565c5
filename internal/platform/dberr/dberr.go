// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/coursehub/internal/platform/apperr"
)

// SQLSTATE codes we classify.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// Wrap classifies a database error as an [apperr.AppError].
//
// Database details stay in the cause for logging and never reach the client.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(action)
	}

	var pgError *pgconn.PgError
	if errors.As(err, &pgError) {
		switch pgError.Code {
		case codeUniqueViolation:
			return apperr.Conflict(action + " already exists")
		case codeForeignKeyViolation, codeCheckViolation:
			return apperr.ValidationError(action + " violates a data constraint")
		}
	}

	return apperr.Internal(fmt.Errorf("%s: %w", action, err))
}
