// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package domain

// Result is the outcome of a repository point read: Found, NotFound or
// Failed. Absence is a value, not an error.
type Result[T any] struct {
	value T
	found bool
	err   error
}

// Found wraps a value that was read successfully.
func Found[T any](v T) Result[T] {
	return Result[T]{value: v, found: true}
}

// NotFound reports a successful read that matched nothing.
func NotFound[T any]() Result[T] {
	return Result[T]{}
}

// Failed reports a read that could not be completed.
func Failed[T any](err error) Result[T] {
	if err == nil {
		panic("domain: Failed called with nil error")
	}
	return Result[T]{err: err}
}

func (r Result[T]) Found() bool { return r.found }

func (r Result[T]) Failed() bool { return r.err != nil }

// Err is nil unless the read failed.
func (r Result[T]) Err() error { return r.err }

// Value returns the value and whether it was found.
func (r Result[T]) Value() (T, bool) { return r.value, r.found }

// Get returns (value, found, err) for callers that prefer a switch.
func (r Result[T]) Get() (T, bool, error) { return r.value, r.found, r.err }
