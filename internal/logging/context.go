package logging

import "context"

// Context keys for logging values. Private types avoid collisions with
// other packages' context keys.
type contextKey int

const (
	conversationIDKey contextKey = iota
	editIDKey
	componentKey
)

// WithConversation adds a conversation ID to the context.
func WithConversation(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, conversationIDKey, conversationID)
}

// WithEditID adds an edit ID to the context.
func WithEditID(ctx context.Context, editID string) context.Context {
	return context.WithValue(ctx, editIDKey, editID)
}

// WithComponent adds a component name to the context (e.g. "tracker",
// "reconstruct", "review").
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// ConversationIDFromContext extracts the conversation ID, or "" if unset.
func ConversationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, conversationIDKey)
}

// EditIDFromContext extracts the edit ID, or "" if unset.
func EditIDFromContext(ctx context.Context) string {
	return stringValue(ctx, editIDKey)
}

// ComponentFromContext extracts the component name, or "" if unset.
func ComponentFromContext(ctx context.Context) string {
	return stringValue(ctx, componentKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
