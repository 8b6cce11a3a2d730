package domain

import "errors"

var (
	// ErrParse marks malformed input (a URL or a bridge payload). Callers
	// always fail open on it.
	ErrParse = errors.New("parse failure")

	// ErrMissingField marks an expected field absent from page-native state.
	// It is diagnostic only; a missing field is a non-match.
	ErrMissingField = errors.New("missing field")

	// ErrBridgeUnavailable means the bridge node or its payload was absent
	// when the native interceptor started.
	ErrBridgeUnavailable = errors.New("bridge unavailable")
)
