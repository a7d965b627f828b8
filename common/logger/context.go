package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Workers enrich the context once per batch or item and every slog call below picks
// the fields up through TraceHandler.
type LogFields struct {
	Stream     *string // Redis stream name
	MessageID  *string // Redis stream entry ID
	CampaignID *int64
	CustomerID *int64
	OwnerID    *string // CRM account the work belongs to
	Consumer   *string // Consumer name within the group
	Component  string  // OTel semantic convention style, e.g. "pipeline.worker.aggregator"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.Stream != nil {
		result.Stream = next.Stream
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.CampaignID != nil {
		result.CampaignID = next.CampaignID
	}
	if next.CustomerID != nil {
		result.CustomerID = next.CustomerID
	}
	if next.OwnerID != nil {
		result.OwnerID = next.OwnerID
	}
	if next.Consumer != nil {
		result.Consumer = next.Consumer
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{Stream: logger.Ptr(name)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
