package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook extracts order_id and instance_id from context and adds them to log events.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if orderID := GetOrderID(ctx); orderID != "" {
		e.Str("order_id", orderID)
	}

	if instanceID := GetInstanceID(ctx); instanceID != "" {
		e.Str("instance_id", instanceID)
	}
}
