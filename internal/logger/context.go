package logger

import "context"

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// eventIDKey is the context key for the lifecycle event ID.
var eventIDKey = contextKey{}

// WithEventID returns a new context carrying the ID of the lifecycle event
// being handled.
func WithEventID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, eventIDKey, id)
}

// EventID extracts the event ID from the context.
// Returns an empty string if no event ID is set.
func EventID(ctx context.Context) string {
	id, _ := ctx.Value(eventIDKey).(string)
	return id
}
