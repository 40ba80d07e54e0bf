package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// tagFieldKeys lists context fields low-cardinality enough to double as
// metric tags.
var tagFieldKeys = []string{"member_id", "entitlement_name", "asset_id", "roblox_user_id"}

func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	elapsed := time.Since(startedAt)

	tags := operationTags(operation, outcome, fields)
	s.recordCounter(ctx, "storefront."+operation+".total", 1, tags)
	s.recordHistogram(ctx, "storefront."+operation+".duration_ms", float64(elapsed.Milliseconds()), tags)

	logFields := cloneFields(fields)
	logFields["event_type"] = operation
	logFields["status"] = outcome
	logFields["duration_ms"] = elapsed.Milliseconds()
	if err != nil {
		logFields["error"] = err.Error()
		s.logError(ctx, operation+" failed", logFields)
		return
	}
	s.logInfo(ctx, operation+" succeeded", logFields)
}

func operationTags(operation string, outcome string, fields map[string]any) map[string]string {
	tags := map[string]string{
		"operation": operation,
		"status":    outcome,
	}
	for _, key := range tagFieldKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if value := strings.TrimSpace(fmt.Sprint(raw)); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}
	return tags
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	if logger := s.contextLogger(ctx, fields); logger != nil {
		logger.Info(message, flattenFields(fields)...)
	}
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	if logger := s.contextLogger(ctx, fields); logger != nil {
		logger.Error(message, flattenFields(fields)...)
	}
}

// contextLogger binds the request context and the structured fields onto
// the service logger when the implementation supports them.
func (s *Service) contextLogger(ctx context.Context, fields map[string]any) Logger {
	if s == nil || s.logger == nil {
		return nil
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	return logger
}

func cloneFields(fields map[string]any) map[string]any {
	copied := make(map[string]any, len(fields))
	maps.Copy(copied, fields)
	return copied
}

// flattenFields turns a field map into the alternating key/value slice
// variadic loggers take, with keys sorted for stable output.
func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(operation)
}
