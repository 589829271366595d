package logging

import "context"

type contextKey string

const (
	orderIDKey    contextKey = "order_id"
	instanceIDKey contextKey = "instance_id"
)

// WithOrderID adds an order ID to the context.
func WithOrderID(ctx context.Context, orderID string) context.Context {
	return context.WithValue(ctx, orderIDKey, orderID)
}

// WithInstanceID adds a checklist instance ID to the context.
func WithInstanceID(ctx context.Context, instanceID string) context.Context {
	return context.WithValue(ctx, instanceIDKey, instanceID)
}

// GetOrderID retrieves the order ID from the context.
// Returns empty string if not present.
func GetOrderID(ctx context.Context) string {
	if id, ok := ctx.Value(orderIDKey).(string); ok {
		return id
	}
	return ""
}

// GetInstanceID retrieves the checklist instance ID from the context.
// Returns empty string if not present.
func GetInstanceID(ctx context.Context) string {
	if id, ok := ctx.Value(instanceIDKey).(string); ok {
		return id
	}
	return ""
}
