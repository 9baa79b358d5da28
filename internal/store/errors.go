// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package store

import (
	"errors"
	"fmt"
)

// StoreError wraps any I/O or constraint failure surfaced by the embedded
// store. The sync engine treats these as fatal for the current cycle but
// non-fatal for the process; the read path uses them to decide when to
// fall back to the remote source.
type StoreError struct {
	Op  string // Store operation that failed, e.g. "upsert", "query_range"
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err (or anything it wraps) is a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
