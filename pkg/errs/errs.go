// Copyright 2026 The Nyx Orchestrator Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errs defines the well-typed error kinds the runtime's callers
// switch on, in place of string-matching error messages.
package errs

import "fmt"

// Kind is a well-typed failure classification. Every LLM call failure, tool
// failure, or orchestration failure that needs caller-visible handling is
// tagged with one of these.
type Kind string

const (
	KindRateLimited     Kind = "rate_limited"
	KindConnection      Kind = "connection"
	KindProviderError   Kind = "provider_error"
	KindTimeout         Kind = "timeout"
	KindCircuitOpen     Kind = "circuit_open"
	KindAccountingError Kind = "accounting_error"
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindDepthExceeded   Kind = "depth_exceeded"
	KindQuotaExceeded   Kind = "quota_exceeded"

	// The remaining kinds are the API-boundary taxonomy: every error that
	// reaches an HTTP handler is tagged with one of these, regardless of
	// which finer-grained kind above produced it at the client layer.
	KindWorkflowExecution Kind = "workflow_execution"
	KindMotivationalEngine Kind = "motivational_engine"
	KindToolExecution     Kind = "tool_execution"
	KindLLMIntegration    Kind = "llm_integration"
	KindDatabase          Kind = "database"
	KindInternal          Kind = "internal"
)

// Code returns the stable error_code string the API boundary emits. Kind
// values already use the wire-format string as their underlying type, so
// this is just a named accessor for callers that want to avoid casting.
func (k Kind) Code() string { return string(k) }

// Error is the runtime's well-typed error: a Kind plus a message and
// optional wrapped cause, so callers can switch on Kind instead of
// pattern-matching strings.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter int // seconds, when Kind == KindRateLimited and the provider supplied one
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether a caller may retry the call that produced this
// error. Accounting errors and validation errors are never retryable;
// transport-level and transient provider errors are.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindConnection, KindProviderError, KindTimeout:
		return true
	default:
		return false
	}
}

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err is an *Error of the given Kind (including through
// wrapped chains is not attempted here — callers use errors.As for that).
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
