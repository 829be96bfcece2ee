// Package errs defines the closed error-kind taxonomy shared across the
// pipeline. Every kind is a stable identifier that survives into the
// Finding/Run JSON record.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a closed set of error classifications. Components never invent
// new kinds at the call site; they pick from this list.
type Kind string

const (
	Config           Kind = "config"
	ConnectorAuth    Kind = "connector_auth"
	ConnectorConnect Kind = "connector_connect"
	ConnectorTimeout Kind = "connector_timeout"
	ConnectorSyntax  Kind = "connector_syntax"
	ConnectorPerm    Kind = "connector_permission"
	ConnectorUnavail Kind = "connector_unavailable"
	ConnectorOther   Kind = "connector_other"
	CheckError       Kind = "check_error"
	RuleEvalError    Kind = "rule_eval_error"
	PromptOverflow   Kind = "prompt_overflow"
	LLMAuth          Kind = "llm_auth"
	LLMRateLimit     Kind = "llm_rate_limit"
	LLMTimeout       Kind = "llm_timeout"
	LLMQuota         Kind = "llm_quota"
	LLMBadRequest    Kind = "llm_bad_request"
	LLMNetwork       Kind = "llm_network"
	LLMProvider      Kind = "llm_provider"
	TrendIngest      Kind = "trend_ingest"
)

// Error is the typed error carried across component boundaries. It is the
// only error shape a Check or Connector is allowed to return once inside
// the pipeline; everything else gets classified into one on the way out.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As is a small convenience wrapper around errors.As for the common case
// of wanting to know whether an error is one of ours.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
