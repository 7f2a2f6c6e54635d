// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package store

import "errors"

// Sentinel errors for store operations, checked with errors.Is.
var (
	// ErrNotFound indicates the requested entry or source does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the identifier is already taken.
	ErrConflict = errors.New("conflict")

	ErrInvalidInput = errors.New("invalid input")

	// ErrDatabase is the catch-all for unexpected database failures.
	ErrDatabase = errors.New("database error")
)
