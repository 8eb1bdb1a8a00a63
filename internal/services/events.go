package services

import (
	"context"

	redisclient "github.com/yungbote/ki-backend/internal/clients/redis"
	"github.com/yungbote/ki-backend/internal/logger"
	"github.com/yungbote/ki-backend/internal/sse"
)

// publishEvent sends a realtime event through the redis bus when one is
// configured, otherwise straight to the in-process hub. Delivery is
// best-effort; failures are logged and never surfaced to the caller.
func publishEvent(ctx context.Context, log *logger.Logger, bus redisclient.SSEBus, hub *sse.SSEHub, msg sse.SSEMessage) {
	if bus != nil {
		if err := bus.Publish(ctx, msg); err != nil {
			log.Warn("Failed to publish event", "event", msg.Event, "error", err)
		}
		return
	}
	if hub != nil {
		hub.Broadcast(msg)
	}
}
