// Scrobblographus - Listening History Sync and Local Scrobble Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scrobblographus

package cache

import (
	"errors"
	"fmt"
	"time"
)

// RemoteFetchError is a network or API failure while fetching a range from
// the remote source. During backfill it fails only the current unit of work
// (one day); at the read path it means the fallback itself failed.
type RemoteFetchError struct {
	From time.Time
	To   time.Time
	Err  error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("remote fetch [%s, %s): %v",
		e.From.Format(time.RFC3339), e.To.Format(time.RFC3339), e.Err)
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}

// IsRemoteFetchError reports whether err wraps a RemoteFetchError.
func IsRemoteFetchError(err error) bool {
	var re *RemoteFetchError
	return errors.As(err, &re)
}

// ConversionError is a malformed remote record that could not be mapped to
// a store row. The row is skipped; the batch continues.
type ConversionError struct {
	Artist string
	Title  string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert track %q by %q: %v", e.Title, e.Artist, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
