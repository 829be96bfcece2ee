package connector

import (
	"context"
	"errors"
	"strings"

	"github.com/dbhealthcheck/engine/internal/errs"
)

// Classify maps a raw driver error into the closed error taxonomy: a
// check sees a structured error, never a raw driver exception. It is
// best-effort string/type sniffing, since Go's SQL/CQL/HTTP drivers don't
// share a driver-agnostic error type to dispatch on.
func Classify(err error) *errs.Error {
	if err == nil {
		return nil
	}
	if e, ok := errs.As(err); ok {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.ConnectorTimeout, "operation timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ConnectorTimeout, "operation canceled", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "password authentication failed", "auth", "unauthorized", "access denied", "permission denied", "forbidden"):
		if containsAny(msg, "permission denied", "forbidden") {
			return errs.Wrap(errs.ConnectorPerm, "permission denied", err)
		}
		return errs.Wrap(errs.ConnectorAuth, "authentication failed", err)
	case containsAny(msg, "timeout", "deadline exceeded", "i/o timeout"):
		return errs.Wrap(errs.ConnectorTimeout, "operation timed out", err)
	case containsAny(msg, "connection refused", "no route to host", "no such host", "broken pipe", "eof", "connection reset"):
		return errs.Wrap(errs.ConnectorConnect, "connection failed", err)
	case containsAny(msg, "syntax error", "parse error", "unknown command"):
		return errs.Wrap(errs.ConnectorSyntax, "query syntax error", err)
	case containsAny(msg, "unavailable", "no healthy", "circuit open"):
		return errs.Wrap(errs.ConnectorUnavail, "backend unavailable", err)
	case containsAny(msg, "not supported", "unsupported"):
		return errs.Wrap(errs.ConnectorOther, "operation not supported", err)
	default:
		return errs.Wrap(errs.ConnectorOther, "connector error", err)
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
