// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDatabaseNotInitialized is returned by Sync when the local document
// store is not available. It is fatal to the current sync pass: no partial
// stats are produced.
var ErrDatabaseNotInitialized = errors.New("possync: database not initialized")

// ErrorCode is the machine-readable classification of a backend failure.
// The sync loop branches on codes, never on raw backend error strings.
type ErrorCode string

const (
	// CodeConditionalCheckFailed is the backend's already-exists signal: a
	// create hit a conditional write guard because the record is already
	// present remotely. The sync engine retries such creates as updates.
	CodeConditionalCheckFailed ErrorCode = "conditional_check_failed"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeThrottled              ErrorCode = "throttled"
	CodeValidation             ErrorCode = "validation"
	CodeUnknown                ErrorCode = "unknown"
)

// BackendError is a typed remote failure carrying the backend's raw
// errorType plus the classified code.
type BackendError struct {
	Code    ErrorCode
	Type    string // raw errorType from the backend, e.g. "DynamoDB:ConditionalCheckFailedException"
	Message string
}

func (e *BackendError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("backend error %s (%s): %s", e.Code, e.Type, e.Message)
	}
	return fmt.Sprintf("backend error %s: %s", e.Code, e.Message)
}

// classifyErrorType maps the backend's errorType strings onto the explicit
// code taxonomy. Unrecognized types classify as CodeUnknown.
func classifyErrorType(errorType string) ErrorCode {
	t := strings.ToLower(errorType)
	switch {
	case strings.Contains(t, "conditionalcheckfailed"):
		return CodeConditionalCheckFailed
	case strings.Contains(t, "unauthorized"), strings.Contains(t, "unauthenticated"):
		return CodeUnauthorized
	case strings.Contains(t, "throttl"):
		return CodeThrottled
	case strings.Contains(t, "validation"), strings.Contains(t, "invalid"):
		return CodeValidation
	default:
		return CodeUnknown
	}
}

// IsConditionalCheckFailed reports whether err is the backend's
// already-exists signal for the create→update fallback.
func IsConditionalCheckFailed(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Code == CodeConditionalCheckFailed
}
