// Package logging provides structured logging for the engine: a logrus
// wrapper that attaches pipeline-scoped fields (run_id, target, check_id)
// rather than the request-scoped ones (trace_id, user_id) a web service
// would use.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys carried through a run.
type ContextKey string

const (
	RunIDKey     ContextKey = "run_id"
	TargetKey    ContextKey = "target"
	CheckIDKey   ContextKey = "check_id"
	CompanyIDKey ContextKey = "company_id"
)

// Logger wraps logrus.Logger with pipeline-scoped field helpers.
type Logger struct {
	*logrus.Logger
	component string
}

// New creates a Logger instance for one named pipeline component.
func New(component, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, component: component}
}

// NewFromEnv constructs a logger using LOG_LEVEL and LOG_FORMAT.
func NewFromEnv(component string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(component, level, format)
}

// WithContext creates a logger entry carrying whichever pipeline-scoped
// values are present on ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("component", l.component)
	if runID := ctx.Value(RunIDKey); runID != nil {
		entry = entry.WithField("run_id", runID)
	}
	if target := ctx.Value(TargetKey); target != nil {
		entry = entry.WithField("target", target)
	}
	if checkID := ctx.Value(CheckIDKey); checkID != nil {
		entry = entry.WithField("check_id", checkID)
	}
	if companyID := ctx.Value(CompanyIDKey); companyID != nil {
		entry = entry.WithField("company_id", companyID)
	}
	return entry
}

// WithFields creates a logger entry with custom fields merged in.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["component"] = l.component
	return l.Logger.WithFields(fields)
}

// WithError creates a logger entry carrying an error field.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{
		"component": l.component,
		"error":     err.Error(),
	})
}

// WithRunID attaches a run ID to ctx for downstream WithContext calls.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithCheckID attaches a check ID to ctx for downstream WithContext calls.
func WithCheckID(ctx context.Context, checkID string) context.Context {
	return context.WithValue(ctx, CheckIDKey, checkID)
}
